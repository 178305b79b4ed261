package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/validation"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

type fakeTicketRepo struct {
	rows        map[string]*domain.Ticket
	order       []string
	comments    *fakeCommentRepo
	attachments *fakeAttachmentRepo
	updateErr   error
}

func (f *fakeTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	copied := *ticket
	f.rows[ticket.ID] = &copied
	f.order = append(f.order, ticket.ID)
	return nil
}

func (f *fakeTicketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.rows[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *ticket
	f.rows[ticket.ID] = &copied
	return nil
}

func (f *fakeTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *row
	return &copied, nil
}

func (f *fakeTicketRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	ids := append([]string{}, f.order...)
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	for _, id := range ids {
		row := f.rows[id]
		if filter.CreatorID != nil && row.CreatorID != *filter.CreatorID {
			continue
		}
		if filter.Status != nil && row.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && row.Priority != *filter.Priority {
			continue
		}
		if filter.Unassigned && row.AssigneeID != nil {
			continue
		}
		if filter.AssigneeID != nil && (row.AssigneeID == nil || *row.AssigneeID != *filter.AssigneeID) {
			continue
		}
		result = append(result, *row)
	}
	return result, nil
}

func (f *fakeTicketRepo) CountByStatus(ctx context.Context, creatorID *string) (map[domain.TicketStatus]int64, error) {
	counts := map[domain.TicketStatus]int64{}
	for _, row := range f.rows {
		if creatorID != nil && row.CreatorID != *creatorID {
			continue
		}
		counts[row.Status]++
	}
	return counts, nil
}

// Delete mirrors the schema's ON DELETE CASCADE over comments and
// attachments.
func (f *fakeTicketRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.rows[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.rows, id)
	for commentID, comment := range f.comments.rows {
		if comment.TicketID != id {
			continue
		}
		delete(f.comments.rows, commentID)
		for attID, att := range f.attachments.rows {
			if att.CommentID != nil && *att.CommentID == commentID {
				delete(f.attachments.rows, attID)
			}
		}
	}
	for attID, att := range f.attachments.rows {
		if att.TicketID != nil && *att.TicketID == id {
			delete(f.attachments.rows, attID)
		}
	}
	return nil
}

func (f *fakeTicketRepo) DeleteAll(ctx context.Context) error {
	f.rows = map[string]*domain.Ticket{}
	f.order = nil
	return nil
}

type fakeCommentRepo struct {
	rows  map[string]*domain.Comment
	order []string
}

func (f *fakeCommentRepo) Create(ctx context.Context, comment *domain.Comment) error {
	copied := *comment
	f.rows[comment.ID] = &copied
	f.order = append(f.order, comment.ID)
	return nil
}

func (f *fakeCommentRepo) GetByID(ctx context.Context, id string) (*domain.Comment, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *row
	return &copied, nil
}

func (f *fakeCommentRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	result := []domain.Comment{}
	for _, id := range f.order {
		row, ok := f.rows[id]
		if !ok || row.TicketID != ticketID {
			continue
		}
		result = append(result, *row)
	}
	return result, nil
}

func (f *fakeCommentRepo) DeleteAll(ctx context.Context) error {
	f.rows = map[string]*domain.Comment{}
	f.order = nil
	return nil
}

type fakeAttachmentRepo struct {
	rows     map[string]*domain.Attachment
	comments *fakeCommentRepo
}

func (f *fakeAttachmentRepo) Create(ctx context.Context, attachment *domain.Attachment) error {
	copied := *attachment
	f.rows[attachment.ID] = &copied
	return nil
}

func (f *fakeAttachmentRepo) GetByID(ctx context.Context, id string) (*domain.Attachment, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *row
	return &copied, nil
}

func (f *fakeAttachmentRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error) {
	result := []domain.Attachment{}
	for _, row := range f.rows {
		if row.TicketID != nil && *row.TicketID == ticketID {
			result = append(result, *row)
		}
	}
	return result, nil
}

func (f *fakeAttachmentRepo) ListByComment(ctx context.Context, commentID string) ([]domain.Attachment, error) {
	result := []domain.Attachment{}
	for _, row := range f.rows {
		if row.CommentID != nil && *row.CommentID == commentID {
			result = append(result, *row)
		}
	}
	return result, nil
}

func (f *fakeAttachmentRepo) ListKeysForTicketTree(ctx context.Context, ticketID string) ([]string, error) {
	keys := []string{}
	for _, row := range f.rows {
		if row.TicketID != nil && *row.TicketID == ticketID {
			keys = append(keys, row.StorageKey)
			continue
		}
		if row.CommentID != nil {
			comment, ok := f.comments.rows[*row.CommentID]
			if ok && comment.TicketID == ticketID {
				keys = append(keys, row.StorageKey)
			}
		}
	}
	return keys, nil
}

type fakeUserRepo struct {
	rows map[string]*domain.User
}

func (f *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	copied := *user
	f.rows[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user *domain.User) error {
	if _, ok := f.rows[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *user
	f.rows[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *row
	return &copied, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, row := range f.rows {
		if row.Email == email {
			copied := *row
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	result := []domain.User{}
	for _, row := range f.rows {
		if row.Role == role {
			result = append(result, *row)
		}
	}
	return result, nil
}

func (f *fakeUserRepo) DeleteAll(ctx context.Context) error {
	f.rows = map[string]*domain.User{}
	return nil
}

type fakeStore struct {
	files map[string][]byte
}

func (f *fakeStore) Store(ctx context.Context, r io.Reader, hint string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", apperrors.NewStorageError(err)
	}
	f.files[hint] = data
	return hint, nil
}

func (f *fakeStore) Open(key string) (io.ReadCloser, error) {
	data, ok := f.files[key]
	if !ok {
		return nil, apperrors.NewNotFound("attachment file", map[string]any{"key": key})
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) Remove(key string) error {
	delete(f.files, key)
	return nil
}

type fixture struct {
	svc         *TicketService
	tickets     *fakeTicketRepo
	comments    *fakeCommentRepo
	attachments *fakeAttachmentRepo
	users       *fakeUserRepo
	store       *fakeStore
}

func newFixture() *fixture {
	comments := &fakeCommentRepo{rows: map[string]*domain.Comment{}}
	attachments := &fakeAttachmentRepo{rows: map[string]*domain.Attachment{}, comments: comments}
	tickets := &fakeTicketRepo{rows: map[string]*domain.Ticket{}, comments: comments, attachments: attachments}
	users := &fakeUserRepo{rows: map[string]*domain.User{}}
	store := &fakeStore{files: map[string][]byte{}}

	validator := validation.NewAttachmentValidator(config.AttachmentConfig{
		AllowedExtensions: []string{".png", ".jpg", ".pdf"},
		MaxSizeBytes:      5 << 20,
	})

	svc := NewTicketService(TicketDependencies{
		TicketRepo:     tickets,
		CommentRepo:    comments,
		AttachmentRepo: attachments,
		UserRepo:       users,
		Validator:      validator,
		Store:          store,
	})
	return &fixture{svc: svc, tickets: tickets, comments: comments, attachments: attachments, users: users, store: store}
}

func (f *fixture) addUser(t *testing.T, name string, role domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{Name: name, Email: name + "@example.com", Role: role}
	if err := f.users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func (f *fixture) addTicket(t *testing.T, creator *domain.User, status domain.TicketStatus) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		Title:       "printer on fire",
		Description: "smoke everywhere",
		Status:      status,
		Priority:    domain.TicketPriorityMedium,
		CreatorID:   creator.ID,
	}
	if err := f.tickets.Create(context.Background(), ticket); err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func errCode(t *testing.T, err error) string {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected domain error, got %T: %v", err, err)
	}
	return domainErr.Code
}

func TestCreateTicketStartsOpenAndUnassigned(t *testing.T) {
	f := newFixture()
	creator := f.addUser(t, "alice", domain.RoleRegular)

	ticket, err := f.svc.CreateTicket(context.Background(), creator, TicketCreateInput{
		Title:       "cannot log in",
		Description: "password rejected since this morning",
		Priority:    domain.TicketPriorityHigh,
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket.Status != domain.TicketStatusOpen {
		t.Errorf("status = %q, want %q", ticket.Status, domain.TicketStatusOpen)
	}
	if ticket.AssigneeID != nil {
		t.Errorf("assignee = %v, want nil", *ticket.AssigneeID)
	}
	if ticket.CreatorID != creator.ID {
		t.Errorf("creator = %q, want %q", ticket.CreatorID, creator.ID)
	}
}

func TestCreateTicketDefaultsPriorityToMedium(t *testing.T) {
	f := newFixture()
	creator := f.addUser(t, "alice", domain.RoleRegular)

	ticket, err := f.svc.CreateTicket(context.Background(), creator, TicketCreateInput{
		Title:       "slow wifi",
		Description: "downloads crawl after lunch",
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket.Priority != domain.TicketPriorityMedium {
		t.Errorf("priority = %q, want %q", ticket.Priority, domain.TicketPriorityMedium)
	}
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture()
	creator := f.addUser(t, "alice", domain.RoleRegular)

	tests := []struct {
		name  string
		input TicketCreateInput
	}{
		{"empty title", TicketCreateInput{Description: "body"}},
		{"empty description", TicketCreateInput{Title: "title"}},
		{"unknown priority", TicketCreateInput{Title: "t", Description: "d", Priority: "whenever"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateTicket(context.Background(), creator, tt.input)
			if code := errCode(t, err); code != "VALIDATION_FAILED" {
				t.Errorf("code = %q, want VALIDATION_FAILED", code)
			}
		})
	}
}

func TestCreateTicketRejectedUploadLeavesNothingBehind(t *testing.T) {
	f := newFixture()
	creator := f.addUser(t, "alice", domain.RoleRegular)

	tests := []struct {
		name   string
		upload AttachmentUpload
	}{
		{"disallowed extension", AttachmentUpload{FileName: "virus.exe", SizeBytes: 10, Content: strings.NewReader("x")}},
		{"oversize file", AttachmentUpload{FileName: "dump.pdf", SizeBytes: 6 << 20, Content: strings.NewReader("x")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateTicket(context.Background(), creator, TicketCreateInput{
				Title:       "with file",
				Description: "see attached",
				Uploads:     []AttachmentUpload{tt.upload},
			})
			if code := errCode(t, err); code != "VALIDATION_FAILED" {
				t.Errorf("code = %q, want VALIDATION_FAILED", code)
			}
			if len(f.store.files) != 0 {
				t.Errorf("store has %d files, want 0", len(f.store.files))
			}
			if len(f.attachments.rows) != 0 {
				t.Errorf("attachment rows = %d, want 0", len(f.attachments.rows))
			}
		})
	}
}

func TestCreateTicketStoresValidUploads(t *testing.T) {
	f := newFixture()
	creator := f.addUser(t, "alice", domain.RoleRegular)

	ticket, err := f.svc.CreateTicket(context.Background(), creator, TicketCreateInput{
		Title:       "screenshot attached",
		Description: "see image",
		Uploads: []AttachmentUpload{
			{FileName: "screen.png", SizeBytes: 512, Content: strings.NewReader("pixels")},
		},
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	attachments, err := f.attachments.ListByTicket(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("ListByTicket: %v", err)
	}
	if len(attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(attachments))
	}
	if _, ok := f.store.files[attachments[0].StorageKey]; !ok {
		t.Errorf("stored file missing for key %q", attachments[0].StorageKey)
	}
}

func TestListTicketsPinsRegularUsersToTheirOwn(t *testing.T) {
	f := newFixture()
	alice := f.addUser(t, "alice", domain.RoleRegular)
	bob := f.addUser(t, "bob", domain.RoleRegular)
	agent := f.addUser(t, "agent", domain.RoleEmployee)

	f.addTicket(t, alice, domain.TicketStatusOpen)
	f.addTicket(t, bob, domain.TicketStatusOpen)
	f.addTicket(t, bob, domain.TicketStatusResolved)

	own, err := f.svc.ListTickets(context.Background(), alice, TicketListFilter{})
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(own) != 1 {
		t.Fatalf("alice sees %d tickets, want 1", len(own))
	}
	if own[0].CreatorID != alice.ID {
		t.Errorf("leaked ticket of %q to alice", own[0].CreatorID)
	}

	all, err := f.svc.ListTickets(context.Background(), agent, TicketListFilter{})
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("employee sees %d tickets, want 3", len(all))
	}

	// Filters narrow but never widen the visible set.
	open := domain.TicketStatusOpen
	filtered, err := f.svc.ListTickets(context.Background(), bob, TicketListFilter{Status: &open})
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(filtered) != 1 {
		t.Errorf("bob sees %d open tickets, want 1", len(filtered))
	}
}

func TestListTicketsRejectsUnknownFilterValues(t *testing.T) {
	f := newFixture()
	alice := f.addUser(t, "alice", domain.RoleRegular)

	bogus := domain.TicketStatus("pending")
	_, err := f.svc.ListTickets(context.Background(), alice, TicketListFilter{Status: &bogus})
	if code := errCode(t, err); code != "VALIDATION_FAILED" {
		t.Errorf("code = %q, want VALIDATION_FAILED", code)
	}
}

func TestGetTicketAccess(t *testing.T) {
	f := newFixture()
	alice := f.addUser(t, "alice", domain.RoleRegular)
	bob := f.addUser(t, "bob", domain.RoleRegular)
	agent := f.addUser(t, "agent", domain.RoleEmployee)
	ticket := f.addTicket(t, alice, domain.TicketStatusOpen)

	if _, err := f.svc.GetTicket(context.Background(), alice, ticket.ID); err != nil {
		t.Errorf("creator denied: %v", err)
	}
	if _, err := f.svc.GetTicket(context.Background(), agent, ticket.ID); err != nil {
		t.Errorf("employee denied: %v", err)
	}
	_, err := f.svc.GetTicket(context.Background(), bob, ticket.ID)
	if code := errCode(t, err); code != "FORBIDDEN" {
		t.Errorf("code = %q, want FORBIDDEN", code)
	}
	_, err = f.svc.GetTicket(context.Background(), alice, uuid.NewString())
	if code := errCode(t, err); code != "NOT_FOUND" {
		t.Errorf("code = %q, want NOT_FOUND", code)
	}
}

func TestGetTicketHidesInternalCommentsFromRegularUsers(t *testing.T) {
	f := newFixture()
	alice := f.addUser(t, "alice", domain.RoleRegular)
	agent := f.addUser(t, "agent", domain.RoleEmployee)
	ticket := f.addTicket(t, alice, domain.TicketStatusOpen)

	if _, err := f.svc.AddComment(context.Background(), alice, ticket.ID, NewPublicComment("it broke again")); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if _, err := f.svc.AddComment(context.Background(), agent, ticket.ID, NewInternalNote("user error, probably")); err != nil {
		t.Fatalf("AddComment: %v", err)
	}

	creatorView, err := f.svc.GetTicket(context.Background(), alice, ticket.ID)
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if len(creatorView.Comments) != 1 {
		t.Fatalf("creator sees %d comments, want 1", len(creatorView.Comments))
	}
	if creatorView.Comments[0].Internal {
		t.Error("internal comment leaked to regular creator")
	}

	employeeView, err := f.svc.GetTicket(context.Background(), agent, ticket.ID)
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if len(employeeView.Comments) != 2 {
		t.Errorf("employee sees %d comments, want 2", len(employeeView.Comments))
	}
}

func TestAddCommentDowngradesInternalForRegularAuthors(t *testing.T) {
	f := newFixture()
	alice := f.addUser(t, "alice", domain.RoleRegular)
	ticket := f.addTicket(t, alice, domain.TicketStatusOpen)

	comment, err := f.svc.AddComment(context.Background(), alice, ticket.ID, NewInternalNote("private note attempt"))
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if comment.Internal {
		t.Error("internal flag survived for regular author, want silent downgrade")
	}
}

func TestAddCommentAskerReplyReopensTicket(t *testing.T) {
	f := newFixture()
	alice := f.addUser(t, "alice", domain.RoleRegular)
	agent := f.addUser(t, "agent", domain.RoleEmployee)

	tests := []struct {
		name       string
		author     *domain.User
		wantStatus domain.TicketStatus
	}{
		{"creator reply transitions", alice, domain.TicketStatusInProgress},
		{"employee reply does not", agent, domain.TicketStatusWaitingOnAsker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket := f.addTicket(t, alice, domain.TicketStatusWaitingOnAsker)
			if _, err := f.svc.AddComment(context.Background(), tt.author, ticket.ID, NewPublicComment("here is more info")); err != nil {
				t.Fatalf("AddComment: %v", err)
			}
			stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
			if err != nil {
				t.Fatalf("GetByID: %v", err)
			}
			if stored.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", stored.Status, tt.wantStatus)
			}
		})
	}
}

func TestAddCommentSurvivesFailedAskerReplyTransition(t *testing.T) {
	f := newFixture()
	alice := f.addUser(t, "alice", domain.RoleRegular)
	ticket := f.addTicket(t, alice, domain.TicketStatusWaitingOnAsker)

	f.tickets.updateErr = errors.New("connection reset")
	comment, err := f.svc.AddComment(context.Background(), alice, ticket.ID, NewPublicComment("still broken"))
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if _, err := f.comments.GetByID(context.Background(), comment.ID); err != nil {
		t.Errorf("comment lost after failed transition: %v", err)
	}
	f.tickets.updateErr = nil
	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != domain.TicketStatusWaitingOnAsker {
		t.Errorf("status = %q, want unchanged %q", stored.Status, domain.TicketStatusWaitingOnAsker)
	}
}

func TestAddCommentDeniedForUnrelatedRegularUser(t *testing.T) {
	f := newFixture()
	alice := f.addUser(t, "alice", domain.RoleRegular)
	bob := f.addUser(t, "bob", domain.RoleRegular)
	ticket := f.addTicket(t, alice, domain.TicketStatusOpen)

	_, err := f.svc.AddComment(context.Background(), bob, ticket.ID, NewPublicComment("me too"))
	if code := errCode(t, err); code != "FORBIDDEN" {
		t.Errorf("code = %q, want FORBIDDEN", code)
	}
}

func TestListAssignableEmployees(t *testing.T) {
	f := newFixture()
	alice := f.addUser(t, "alice", domain.RoleRegular)
	agent := f.addUser(t, "agent", domain.RoleEmployee)
	f.addUser(t, "other", domain.RoleEmployee)

	employees, err := f.svc.ListAssignableEmployees(context.Background(), agent)
	if err != nil {
		t.Fatalf("ListAssignableEmployees: %v", err)
	}
	if len(employees) != 2 {
		t.Errorf("employees = %d, want 2", len(employees))
	}
	for _, employee := range employees {
		if employee.Role != domain.RoleEmployee {
			t.Errorf("non-employee %q in assignee choices", employee.Name)
		}
	}

	_, err = f.svc.ListAssignableEmployees(context.Background(), alice)
	if code := errCode(t, err); code != "FORBIDDEN" {
		t.Errorf("code = %q, want FORBIDDEN", code)
	}
}

func TestSelfAssign(t *testing.T) {
	f := newFixture()
	alice := f.addUser(t, "alice", domain.RoleRegular)
	agent := f.addUser(t, "agent", domain.RoleEmployee)
	other := f.addUser(t, "other", domain.RoleEmployee)

	t.Run("open ticket moves to in_progress", func(t *testing.T) {
		ticket := f.addTicket(t, alice, domain.TicketStatusOpen)
		updated, err := f.svc.SelfAssign(context.Background(), agent, ticket.ID)
		if err != nil {
			t.Fatalf("SelfAssign: %v", err)
		}
		if updated.Status != domain.TicketStatusInProgress {
			t.Errorf("status = %q, want in_progress", updated.Status)
		}
		if updated.AssigneeID == nil || *updated.AssigneeID != agent.ID {
			t.Error("assignee not set to actor")
		}
	})

	t.Run("non-open status preserved", func(t *testing.T) {
		ticket := f.addTicket(t, alice, domain.TicketStatusResolved)
		updated, err := f.svc.SelfAssign(context.Background(), agent, ticket.ID)
		if err != nil {
			t.Fatalf("SelfAssign: %v", err)
		}
		if updated.Status != domain.TicketStatusResolved {
			t.Errorf("status = %q, want resolved", updated.Status)
		}
	})

	t.Run("claims ticket held by another employee", func(t *testing.T) {
		ticket := f.addTicket(t, alice, domain.TicketStatusInProgress)
		if _, err := f.svc.SelfAssign(context.Background(), other, ticket.ID); err != nil {
			t.Fatalf("SelfAssign: %v", err)
		}
		updated, err := f.svc.SelfAssign(context.Background(), agent, ticket.ID)
		if err != nil {
			t.Fatalf("SelfAssign: %v", err)
		}
		if updated.AssigneeID == nil || *updated.AssigneeID != agent.ID {
			t.Error("reassignment did not take")
		}
	})

	t.Run("regular user forbidden", func(t *testing.T) {
		ticket := f.addTicket(t, alice, domain.TicketStatusOpen)
		_, err := f.svc.SelfAssign(context.Background(), alice, ticket.ID)
		if code := errCode(t, err); code != "FORBIDDEN" {
			t.Errorf("code = %q, want FORBIDDEN", code)
		}
	})
}

func TestUpdateTicket(t *testing.T) {
	f := newFixture()
	alice := f.addUser(t, "alice", domain.RoleRegular)
	agent := f.addUser(t, "agent", domain.RoleEmployee)

	t.Run("regular user forbidden", func(t *testing.T) {
		ticket := f.addTicket(t, alice, domain.TicketStatusOpen)
		status := domain.TicketStatusClosed
		_, err := f.svc.UpdateTicket(context.Background(), alice, ticket.ID, TicketUpdateInput{Status: &status})
		if code := errCode(t, err); code != "FORBIDDEN" {
			t.Errorf("code = %q, want FORBIDDEN", code)
		}
	})

	t.Run("any status reachable by explicit action", func(t *testing.T) {
		ticket := f.addTicket(t, alice, domain.TicketStatusResolved)
		status := domain.TicketStatusOpen
		updated, err := f.svc.UpdateTicket(context.Background(), agent, ticket.ID, TicketUpdateInput{Status: &status})
		if err != nil {
			t.Fatalf("UpdateTicket: %v", err)
		}
		if updated.Status != domain.TicketStatusOpen {
			t.Errorf("status = %q, want open", updated.Status)
		}
	})

	t.Run("assignee must be employee", func(t *testing.T) {
		ticket := f.addTicket(t, alice, domain.TicketStatusOpen)
		_, err := f.svc.UpdateTicket(context.Background(), agent, ticket.ID, TicketUpdateInput{AssigneeID: &alice.ID})
		if code := errCode(t, err); code != "VALIDATION_FAILED" {
			t.Errorf("code = %q, want VALIDATION_FAILED", code)
		}
	})

	t.Run("unassign clears assignee", func(t *testing.T) {
		ticket := f.addTicket(t, alice, domain.TicketStatusInProgress)
		if _, err := f.svc.SelfAssign(context.Background(), agent, ticket.ID); err != nil {
			t.Fatalf("SelfAssign: %v", err)
		}
		updated, err := f.svc.UpdateTicket(context.Background(), agent, ticket.ID, TicketUpdateInput{Unassign: true})
		if err != nil {
			t.Fatalf("UpdateTicket: %v", err)
		}
		if updated.AssigneeID != nil {
			t.Errorf("assignee = %q, want nil", *updated.AssigneeID)
		}
	})

	t.Run("unknown ticket", func(t *testing.T) {
		status := domain.TicketStatusClosed
		_, err := f.svc.UpdateTicket(context.Background(), agent, uuid.NewString(), TicketUpdateInput{Status: &status})
		if code := errCode(t, err); code != "NOT_FOUND" {
			t.Errorf("code = %q, want NOT_FOUND", code)
		}
	})
}

func TestDeleteTicketRemovesWholeTree(t *testing.T) {
	f := newFixture()
	alice := f.addUser(t, "alice", domain.RoleRegular)
	agent := f.addUser(t, "agent", domain.RoleEmployee)

	ticket, err := f.svc.CreateTicket(context.Background(), alice, TicketCreateInput{
		Title:       "broken scanner",
		Description: "see photo",
		Uploads: []AttachmentUpload{
			{FileName: "scanner.jpg", SizeBytes: 256, Content: strings.NewReader("jpeg")},
		},
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if _, err := f.svc.AddComment(context.Background(), alice, ticket.ID, NewPublicComment("close-up attached",
		AttachmentUpload{FileName: "detail.png", SizeBytes: 128, Content: strings.NewReader("png")})); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if len(f.store.files) != 2 {
		t.Fatalf("store has %d files before delete, want 2", len(f.store.files))
	}

	if err := f.svc.DeleteTicket(context.Background(), agent, ticket.ID); err != nil {
		t.Fatalf("DeleteTicket: %v", err)
	}

	if len(f.tickets.rows) != 0 {
		t.Errorf("ticket rows = %d, want 0", len(f.tickets.rows))
	}
	if len(f.comments.rows) != 0 {
		t.Errorf("comment rows = %d, want 0", len(f.comments.rows))
	}
	if len(f.attachments.rows) != 0 {
		t.Errorf("attachment rows = %d, want 0", len(f.attachments.rows))
	}
	if len(f.store.files) != 0 {
		t.Errorf("stored files = %d, want 0", len(f.store.files))
	}
}

func TestDeleteTicketForbiddenForRegularCreator(t *testing.T) {
	f := newFixture()
	alice := f.addUser(t, "alice", domain.RoleRegular)
	ticket := f.addTicket(t, alice, domain.TicketStatusOpen)

	err := f.svc.DeleteTicket(context.Background(), alice, ticket.ID)
	if code := errCode(t, err); code != "FORBIDDEN" {
		t.Errorf("code = %q, want FORBIDDEN", code)
	}
}

func TestOpenAttachmentAccess(t *testing.T) {
	f := newFixture()
	alice := f.addUser(t, "alice", domain.RoleRegular)
	bob := f.addUser(t, "bob", domain.RoleRegular)
	agent := f.addUser(t, "agent", domain.RoleEmployee)

	ticket, err := f.svc.CreateTicket(context.Background(), alice, TicketCreateInput{
		Title:       "invoice question",
		Description: "see attached invoice",
		Uploads: []AttachmentUpload{
			{FileName: "invoice.pdf", SizeBytes: 64, Content: strings.NewReader("pdf bytes")},
		},
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	attachments, err := f.attachments.ListByTicket(context.Background(), ticket.ID)
	if err != nil || len(attachments) != 1 {
		t.Fatalf("ListByTicket: %v (%d rows)", err, len(attachments))
	}
	attachmentID := attachments[0].ID

	t.Run("creator may open", func(t *testing.T) {
		meta, rc, err := f.svc.OpenAttachment(context.Background(), alice, attachmentID)
		if err != nil {
			t.Fatalf("OpenAttachment: %v", err)
		}
		defer rc.Close()
		data, _ := io.ReadAll(rc)
		if string(data) != "pdf bytes" {
			t.Errorf("content = %q", data)
		}
		if meta.FileName != "invoice.pdf" {
			t.Errorf("file name = %q", meta.FileName)
		}
	})

	t.Run("unrelated user forbidden", func(t *testing.T) {
		_, _, err := f.svc.OpenAttachment(context.Background(), bob, attachmentID)
		if code := errCode(t, err); code != "FORBIDDEN" {
			t.Errorf("code = %q, want FORBIDDEN", code)
		}
	})

	t.Run("internal comment attachment hidden from creator", func(t *testing.T) {
		if _, err := f.svc.AddComment(context.Background(), agent, ticket.ID, NewInternalNote("internal doc",
			AttachmentUpload{FileName: "notes.pdf", SizeBytes: 32, Content: strings.NewReader("internal")})); err != nil {
			t.Fatalf("AddComment: %v", err)
		}
		var internalID string
		for id, row := range f.attachments.rows {
			if row.CommentID != nil {
				internalID = id
			}
		}
		if internalID == "" {
			t.Fatal("internal comment attachment not found")
		}
		_, _, err := f.svc.OpenAttachment(context.Background(), alice, internalID)
		if code := errCode(t, err); code != "FORBIDDEN" {
			t.Errorf("code = %q, want FORBIDDEN", code)
		}
		if _, rc, err := f.svc.OpenAttachment(context.Background(), agent, internalID); err != nil {
			t.Errorf("employee denied: %v", err)
		} else {
			rc.Close()
		}
	})

	t.Run("unknown attachment", func(t *testing.T) {
		_, _, err := f.svc.OpenAttachment(context.Background(), alice, uuid.NewString())
		if code := errCode(t, err); code != "NOT_FOUND" {
			t.Errorf("code = %q, want NOT_FOUND", code)
		}
	})
}
