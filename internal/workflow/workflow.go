// Package workflow implements the ticket status rules: free-form employee
// updates, the self-assignment side effect and the single automatic
// transition fired by an asker reply.
package workflow

import "github.com/spec-kit/helpdesk/internal/domain"

// ValidStatus reports whether the status is one of the five known values.
// Employees may move a ticket between any two valid statuses; there is no
// transition graph beyond the automatic rules below.
func ValidStatus(s domain.TicketStatus) bool {
	for _, candidate := range domain.TicketStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ValidPriority reports whether the priority is a known value.
func ValidPriority(p domain.TicketPriority) bool {
	for _, candidate := range domain.TicketPriorities {
		if candidate == p {
			return true
		}
	}
	return false
}

// DefaultPriority is applied when the caller supplies none.
func DefaultPriority(p domain.TicketPriority) domain.TicketPriority {
	if p == "" {
		return domain.TicketPriorityMedium
	}
	return p
}

// ApplySelfAssignment records the actor as assignee and, when the ticket is
// still open, moves it to in_progress. Any other status is left alone.
// It returns the previous status for logging.
func ApplySelfAssignment(ticket *domain.Ticket, actorID string) domain.TicketStatus {
	previous := ticket.Status
	ticket.AssigneeID = &actorID
	if ticket.Status == domain.TicketStatusOpen {
		ticket.Status = domain.TicketStatusInProgress
	}
	return previous
}

// AskerReplyTransition reports whether a comment by authorID should move
// the ticket from waiting_on_asker to in_progress. Only the ticket creator
// triggers it; assignees and other employees do not.
func AskerReplyTransition(ticket *domain.Ticket, authorID string) bool {
	return ticket.Status == domain.TicketStatusWaitingOnAsker && ticket.CreatorID == authorID
}
