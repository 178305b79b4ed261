package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/access"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/storage"
	"github.com/spec-kit/helpdesk/internal/validation"
	"github.com/spec-kit/helpdesk/internal/workflow"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// TicketService coordinates ticket, comment and attachment operations.
type TicketService struct {
	tickets     repository.TicketRepository
	comments    repository.CommentRepository
	attachments repository.AttachmentRepository
	users       repository.UserRepository
	validator   *validation.AttachmentValidator
	store       storage.Store
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	CommentRepo    repository.CommentRepository
	AttachmentRepo repository.AttachmentRepository
	UserRepo       repository.UserRepository
	Validator      *validation.AttachmentValidator
	Store          storage.Store
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		comments:    deps.CommentRepo,
		attachments: deps.AttachmentRepo,
		users:       deps.UserRepo,
		validator:   deps.Validator,
		store:       deps.Store,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
	}
}

// AttachmentUpload carries an incoming file. Content is read fully into
// the sink only after validation passes.
type AttachmentUpload struct {
	FileName  string
	SizeBytes int64
	Content   io.Reader
}

// TicketCreateInput describes ticket creation. There is no status field:
// every ticket starts open with no assignee regardless of the caller.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	Uploads     []AttachmentUpload
}

// TicketListFilter narrows listings by exact match. For regular users the
// result set is pinned to their own tickets before these apply.
type TicketListFilter struct {
	Status   *domain.TicketStatus
	Priority *domain.TicketPriority
	Limit    int
	Offset   int
}

// TicketUpdateInput is the employee-only mutation of status, priority and
// assignment. Nil fields are left unchanged.
type TicketUpdateInput struct {
	Status     *domain.TicketStatus
	Priority   *domain.TicketPriority
	AssigneeID *string
	Unassign   bool
}

// TicketDetail is a ticket with its visible thread and direct attachments.
type TicketDetail struct {
	Ticket      *domain.Ticket
	Comments    []domain.Comment
	Attachments []domain.Attachment
}

// CommentInput describes a new thread comment. Use NewPublicComment or
// NewInternalNote; the internal flag cannot be set any other way.
type CommentInput struct {
	body     string
	internal bool
	uploads  []AttachmentUpload
}

// NewPublicComment builds a comment visible to everyone on the ticket.
func NewPublicComment(body string, uploads ...AttachmentUpload) CommentInput {
	return CommentInput{body: body, uploads: uploads}
}

// NewInternalNote builds an employee-only comment. If the author turns out
// not to be an employee the flag is silently downgraded, not rejected.
func NewInternalNote(body string, uploads ...AttachmentUpload) CommentInput {
	return CommentInput{body: body, internal: true, uploads: uploads}
}

// CreateTicket files a new ticket for the actor.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthenticated("identity required")
	}
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description are required", nil)
	}
	priority := workflow.DefaultPriority(input.Priority)
	if !workflow.ValidPriority(priority) {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}
	if err := s.validateUploads(input.Uploads); err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
		CreatorID:   actor.ID,
		AssigneeID:  nil,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	if err := s.saveUploads(ctx, actor.ID, &ticket.ID, nil, input.Uploads); err != nil {
		return nil, err
	}

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("creator_id", actor.ID),
		zap.String("priority", string(ticket.Priority)),
	)
	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketCreated,
		TicketID:  ticket.ID,
		CreatorID: ticket.CreatorID,
		ActorID:   actor.ID,
		Payload: events.TicketCreatedPayload{
			Title:    ticket.Title,
			Priority: ticket.Priority,
		},
	})
	return ticket, nil
}

// ListTickets returns tickets the actor may see, newest first. Explicit
// filters only narrow the visibility-restricted set.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, filter TicketListFilter) ([]domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthenticated("identity required")
	}
	if filter.Status != nil && !workflow.ValidStatus(*filter.Status) {
		return nil, apperrors.NewValidationError("invalid status filter", map[string]any{"status": *filter.Status})
	}
	if filter.Priority != nil && !workflow.ValidPriority(*filter.Priority) {
		return nil, apperrors.NewValidationError("invalid priority filter", map[string]any{"priority": *filter.Priority})
	}

	repoFilter := repository.TicketFilter{
		Status:   filter.Status,
		Priority: filter.Priority,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}
	if !actor.IsEmployee() {
		creatorID := actor.ID
		repoFilter.CreatorID = &creatorID
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// GetTicket fetches a ticket with its thread, filtered for the viewer.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*TicketDetail, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !access.CanViewTicket(actor, ticket) {
		return nil, apperrors.NewForbidden("you can only view your own tickets")
	}

	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	comments = access.VisibleComments(actor, comments)
	for i := range comments {
		attachments, err := s.attachments.ListByComment(ctx, comments[i].ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		comments[i].Attachments = attachments
	}

	direct, err := s.attachments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	return &TicketDetail{Ticket: ticket, Comments: comments, Attachments: direct}, nil
}

// UpdateTicket applies an employee's status/priority/assignment change.
// Any status is reachable from any status by explicit employee action.
func (s *TicketService) UpdateTicket(ctx context.Context, actor *domain.User, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !access.CanModifyTicket(actor, ticket) {
		return nil, apperrors.NewForbidden("only employees may update tickets")
	}

	oldStatus := ticket.Status
	oldPriority := ticket.Priority
	oldAssignee := ticket.AssigneeID

	if input.Status != nil {
		if !workflow.ValidStatus(*input.Status) {
			return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": *input.Status})
		}
		ticket.Status = *input.Status
	}
	if input.Priority != nil {
		if !workflow.ValidPriority(*input.Priority) {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": *input.Priority})
		}
		ticket.Priority = *input.Priority
	}
	if input.Unassign {
		ticket.AssigneeID = nil
	} else if input.AssigneeID != nil {
		assignee, err := s.users.GetByID(ctx, *input.AssigneeID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("assignee", map[string]any{"user_id": *input.AssigneeID})
			}
			return nil, apperrors.MapError(err)
		}
		if !assignee.IsEmployee() {
			return nil, apperrors.NewValidationError("assignee must be an employee", map[string]any{"user_id": assignee.ID})
		}
		ticket.AssigneeID = &assignee.ID
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("ticket updated",
		zap.String("ticket_id", ticket.ID),
		zap.String("actor_id", actor.ID),
		zap.String("old_status", string(oldStatus)),
		zap.String("new_status", string(ticket.Status)),
		zap.String("old_priority", string(oldPriority)),
		zap.String("new_priority", string(ticket.Priority)),
	)
	if oldStatus != ticket.Status {
		s.publishEvent(ctx, events.Event{
			Type:      events.EventTicketStatusChanged,
			TicketID:  ticket.ID,
			CreatorID: ticket.CreatorID,
			ActorID:   actor.ID,
			Payload: events.TicketStatusChangedPayload{
				OldStatus: oldStatus,
				NewStatus: ticket.Status,
			},
		})
	}
	if oldPriority != ticket.Priority {
		s.publishEvent(ctx, events.Event{
			Type:      events.EventTicketPriorityChanged,
			TicketID:  ticket.ID,
			CreatorID: ticket.CreatorID,
			ActorID:   actor.ID,
			Payload: events.TicketPriorityChangedPayload{
				OldPriority: oldPriority,
				NewPriority: ticket.Priority,
			},
		})
	}
	if !assigneeEqual(oldAssignee, ticket.AssigneeID) {
		s.publishEvent(ctx, events.Event{
			Type:      events.EventTicketAssigned,
			TicketID:  ticket.ID,
			CreatorID: ticket.CreatorID,
			ActorID:   actor.ID,
			Payload:   events.TicketAssignedPayload{AssigneeID: ticket.AssigneeID},
		})
	}
	return ticket, nil
}

// ListAssignableEmployees returns the accounts a ticket can be assigned
// to, for the employee update form.
func (s *TicketService) ListAssignableEmployees(ctx context.Context, actor *domain.User) ([]domain.User, error) {
	if !actor.IsEmployee() {
		return nil, apperrors.NewForbidden("only employees may list assignees")
	}
	employees, err := s.users.ListByRole(ctx, domain.RoleEmployee)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return employees, nil
}

// SelfAssign lets an employee claim a ticket. An open ticket moves to
// in_progress as a side effect; any other status is preserved.
func (s *TicketService) SelfAssign(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	if !access.CanSelfAssign(actor) {
		return nil, apperrors.NewForbidden("only employees may self-assign")
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	previous := workflow.ApplySelfAssignment(ticket, actor.ID)
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("ticket self-assigned",
		zap.String("ticket_id", ticket.ID),
		zap.String("assignee_id", actor.ID),
		zap.String("old_status", string(previous)),
		zap.String("new_status", string(ticket.Status)),
	)
	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketAssigned,
		TicketID:  ticket.ID,
		CreatorID: ticket.CreatorID,
		ActorID:   actor.ID,
		Payload:   events.TicketAssignedPayload{AssigneeID: ticket.AssigneeID},
	})
	if previous != ticket.Status {
		s.publishEvent(ctx, events.Event{
			Type:      events.EventTicketStatusChanged,
			TicketID:  ticket.ID,
			CreatorID: ticket.CreatorID,
			ActorID:   actor.ID,
			Payload: events.TicketStatusChangedPayload{
				OldStatus: previous,
				NewStatus: ticket.Status,
				Automatic: true,
			},
		})
	}
	return ticket, nil
}

// DeleteTicket removes the ticket, its comments and every attachment of
// both. Rows cascade in the schema; stored files are removed afterwards.
func (s *TicketService) DeleteTicket(ctx context.Context, actor *domain.User, ticketID string) error {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if !access.CanModifyTicket(actor, ticket) {
		return apperrors.NewForbidden("only employees may delete tickets")
	}

	keys, err := s.attachments.ListKeysForTicketTree(ctx, ticket.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
		return apperrors.MapError(err)
	}
	for _, key := range keys {
		if err := s.store.Remove(key); err != nil {
			s.logger.Warn("failed to remove stored attachment", zap.String("key", key), zap.Error(err))
		}
	}

	s.logger.Info("ticket deleted", zap.String("ticket_id", ticket.ID), zap.String("actor_id", actor.ID))
	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketDeleted,
		TicketID:  ticket.ID,
		CreatorID: ticket.CreatorID,
		ActorID:   actor.ID,
	})
	return nil
}

// AddComment appends a comment to the thread. A reply by the creator while
// the ticket waits on them moves it back to in_progress; the comment
// stands even if that status write fails.
func (s *TicketService) AddComment(ctx context.Context, actor *domain.User, ticketID string, input CommentInput) (*domain.Comment, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthenticated("identity required")
	}
	body := strings.TrimSpace(input.body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment body is required", nil)
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !access.CanViewTicket(actor, ticket) {
		return nil, apperrors.NewForbidden("you can only comment on your own tickets")
	}
	if err := s.validateUploads(input.uploads); err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		ID:       uuid.NewString(),
		TicketID: ticket.ID,
		AuthorID: actor.ID,
		Body:     body,
		Internal: input.internal && access.CanMarkInternal(actor),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}

	if err := s.saveUploads(ctx, actor.ID, nil, &comment.ID, input.uploads); err != nil {
		return nil, err
	}

	if workflow.AskerReplyTransition(ticket, actor.ID) {
		oldStatus := ticket.Status
		ticket.Status = domain.TicketStatusInProgress
		if err := s.tickets.Update(ctx, ticket); err != nil {
			// The comment already exists; surface the failed transition in
			// logs rather than failing the whole operation.
			s.logger.Error("asker-reply status transition failed",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
		} else {
			s.logger.Info("ticket status changed after asker reply",
				zap.String("ticket_id", ticket.ID),
				zap.String("old_status", string(oldStatus)),
				zap.String("new_status", string(ticket.Status)),
			)
			s.publishEvent(ctx, events.Event{
				Type:      events.EventTicketStatusChanged,
				TicketID:  ticket.ID,
				CreatorID: ticket.CreatorID,
				ActorID:   actor.ID,
				Payload: events.TicketStatusChangedPayload{
					OldStatus: oldStatus,
					NewStatus: ticket.Status,
					Automatic: true,
				},
			})
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventCommentAdded,
		TicketID:  ticket.ID,
		CreatorID: ticket.CreatorID,
		ActorID:   actor.ID,
		Payload: events.CommentAddedPayload{
			CommentID: comment.ID,
			Internal:  comment.Internal,
		},
	})
	return comment, nil
}

// OpenAttachment resolves an attachment, checks the viewer may see its
// parent ticket, and returns the stored file.
func (s *TicketService) OpenAttachment(ctx context.Context, actor *domain.User, attachmentID string) (*domain.Attachment, io.ReadCloser, error) {
	attachment, err := s.attachments.GetByID(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("attachment", map[string]any{"attachment_id": attachmentID})
		}
		return nil, nil, apperrors.MapError(err)
	}

	ticketID := ""
	switch {
	case attachment.TicketID != nil:
		ticketID = *attachment.TicketID
	case attachment.CommentID != nil:
		comment, err := s.comments.GetByID(ctx, *attachment.CommentID)
		if err != nil {
			return nil, nil, apperrors.MapError(err)
		}
		if comment.Internal && !actor.IsEmployee() {
			return nil, nil, apperrors.NewForbidden("attachment not accessible")
		}
		ticketID = comment.TicketID
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if !access.CanViewTicket(actor, ticket) {
		return nil, nil, apperrors.NewForbidden("attachment not accessible")
	}

	rc, err := s.store.Open(attachment.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return attachment, rc, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// validateUploads runs the pure checks before anything touches the sink,
// so a rejected file leaves no stored artifact and no row.
func (s *TicketService) validateUploads(uploads []AttachmentUpload) error {
	for _, upload := range uploads {
		if err := s.validator.Validate(upload.FileName, upload.SizeBytes); err != nil {
			return err
		}
	}
	return nil
}

// saveUploads streams each file into the sink and records its metadata.
// The row is only written after the file is safely stored.
func (s *TicketService) saveUploads(ctx context.Context, uploaderID string, ticketID, commentID *string, uploads []AttachmentUpload) error {
	for _, upload := range uploads {
		attachment := &domain.Attachment{
			ID:         uuid.NewString(),
			TicketID:   ticketID,
			CommentID:  commentID,
			FileName:   upload.FileName,
			SizeBytes:  upload.SizeBytes,
			UploaderID: uploaderID,
		}
		var hint string
		if ticketID != nil {
			hint = storage.TicketHint(*ticketID, upload.FileName)
		} else {
			hint = storage.CommentHint(*commentID, upload.FileName)
		}
		key, err := s.store.Store(ctx, upload.Content, hint)
		if err != nil {
			return err
		}
		attachment.StorageKey = key
		if err := s.attachments.Create(ctx, attachment); err != nil {
			// Roll the stored file back so nothing orphaned remains.
			_ = s.store.Remove(key)
			return apperrors.MapError(err)
		}
	}
	return nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func assigneeEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
