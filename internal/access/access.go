// Package access holds the pure role and ownership predicates that gate
// every ticket and comment operation. Handlers recover a denied decision
// into a redirect-equivalent response; nothing here performs I/O.
package access

import "github.com/spec-kit/helpdesk/internal/domain"

// CanViewTicket reports whether the user may open the ticket. Employees
// see every ticket; regular users only their own.
func CanViewTicket(user *domain.User, ticket *domain.Ticket) bool {
	if user == nil || ticket == nil {
		return false
	}
	return user.IsEmployee() || user.ID == ticket.CreatorID
}

// CanModifyTicket reports whether the user may change status, priority or
// assignment. Only employees ever mutate tickets.
func CanModifyTicket(user *domain.User, ticket *domain.Ticket) bool {
	return user.IsEmployee() && ticket != nil
}

// CanMarkInternal reports whether the user may author internal comments.
func CanMarkInternal(user *domain.User) bool {
	return user.IsEmployee()
}

// CanSelfAssign reports whether the user may claim a ticket.
func CanSelfAssign(user *domain.User) bool {
	return user.IsEmployee()
}

// VisibleComments filters a ticket thread for the given viewer. Employees
// see everything; regular users never see internal comments, not even on
// tickets they created. The filter runs at read time so internal comments
// remain stored and countable.
func VisibleComments(user *domain.User, comments []domain.Comment) []domain.Comment {
	if user.IsEmployee() {
		return comments
	}
	visible := make([]domain.Comment, 0, len(comments))
	for _, comment := range comments {
		if comment.Internal {
			continue
		}
		visible = append(visible, comment)
	}
	return visible
}
