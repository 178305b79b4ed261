package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload. Status is deliberately absent: tickets
// always start open.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// UpdateTicketRequest is the employee mutation payload.
type UpdateTicketRequest struct {
	Status     *domain.TicketStatus   `json:"status"`
	Priority   *domain.TicketPriority `json:"priority"`
	AssigneeID *string                `json:"assignee_id"`
	Unassign   bool                   `json:"unassign"`
}

// CreateCommentRequest payload. Internal is honored only for employees.
type CreateCommentRequest struct {
	Body     string `json:"body"`
	Internal bool   `json:"internal"`
}

// TicketSummary response.
type TicketSummary struct {
	ID         string                `json:"id"`
	Title      string                `json:"title"`
	Status     domain.TicketStatus   `json:"status"`
	Priority   domain.TicketPriority `json:"priority"`
	CreatorID  string                `json:"creator_id"`
	AssigneeID *string               `json:"assignee_id"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info with its thread.
type TicketDetailResponse struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	CreatorID   string                `json:"creator_id"`
	AssigneeID  *string               `json:"assignee_id"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	Comments    []CommentResponse     `json:"comments"`
	Attachments []AttachmentResponse  `json:"attachments"`
}

// CommentResponse represents a thread entry.
type CommentResponse struct {
	ID          string               `json:"id"`
	AuthorID    string               `json:"author_id"`
	Body        string               `json:"body"`
	Internal    bool                 `json:"internal"`
	Attachments []AttachmentResponse `json:"attachments"`
	CreatedAt   time.Time            `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	SizeBytes   int64     `json:"size_bytes"`
	SizeDisplay string    `json:"size_display"`
	IsImage     bool      `json:"is_image"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// DashboardResponse is the role-shaped landing view.
type DashboardResponse struct {
	IsEmployee bool            `json:"is_employee"`
	Stats      DashboardStats  `json:"stats"`
	Tickets    []TicketSummary `json:"tickets"`
	Unassigned []TicketSummary `json:"unassigned,omitempty"`
	MyAssigned []TicketSummary `json:"my_assigned,omitempty"`
}

// DashboardStats mirrors the cached status counts.
type DashboardStats struct {
	Total          int64 `json:"total"`
	Open           int64 `json:"open"`
	InProgress     int64 `json:"in_progress"`
	WaitingOnAsker int64 `json:"waiting_on_asker"`
	Resolved       int64 `json:"resolved"`
}
