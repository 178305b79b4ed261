package handlers

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// TicketsHandler manages ticket, comment and attachment endpoints.
type TicketsHandler struct {
	tickets *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{tickets: ticketService}
}

// CreateTicket POST /tickets. Accepts JSON or multipart (with files).
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthenticated("identity required")
	}

	input := service.TicketCreateInput{}
	if form, err := c.MultipartForm(); err == nil && form != nil {
		input.Title = formValue(form, "title")
		input.Description = formValue(form, "description")
		input.Priority = domain.TicketPriority(formValue(form, "priority"))
		uploads, closeFiles, err := uploadsFromForm(form)
		if err != nil {
			return err
		}
		defer closeFiles()
		input.Uploads = uploads
	} else {
		var req dto.CreateTicketRequest
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
		input.Title = req.Title
		input.Description = req.Description
		input.Priority = req.Priority
	}

	ticket, err := h.tickets.CreateTicket(c.Context(), actor, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListTickets GET /tickets?status=&priority=.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthenticated("identity required")
	}

	filter := service.TicketListFilter{}
	if statusStr := strings.TrimSpace(c.Query("status")); statusStr != "" {
		status := domain.TicketStatus(statusStr)
		filter.Status = &status
	}
	if priorityStr := strings.TrimSpace(c.Query("priority")); priorityStr != "" {
		priority := domain.TicketPriority(priorityStr)
		filter.Priority = &priority
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize

	tickets, err := h.tickets.ListTickets(c.Context(), actor, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthenticated("identity required")
	}
	detail, err := h.tickets.GetTicket(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(detail)})
}

// UpdateTicket PATCH /tickets/:id. Employee only.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthenticated("identity required")
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.UpdateTicket(c.Context(), actor, c.Params("id"), service.TicketUpdateInput{
		Status:     req.Status,
		Priority:   req.Priority,
		AssigneeID: req.AssigneeID,
		Unassign:   req.Unassign,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// SelfAssign POST /tickets/:id/assign/self. Employee only.
func (h *TicketsHandler) SelfAssign(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthenticated("identity required")
	}
	ticket, err := h.tickets.SelfAssign(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListAssignees GET /users/employees. Employee only; feeds the assignee
// choices of the ticket update form.
func (h *TicketsHandler) ListAssignees(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthenticated("identity required")
	}
	employees, err := h.tickets.ListAssignableEmployees(c.Context(), actor)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(employees))
	for i := range employees {
		items = append(items, userResponse(&employees[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// DeleteTicket DELETE /tickets/:id. Employee only; cascades.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthenticated("identity required")
	}
	if err := h.tickets.DeleteTicket(c.Context(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// AddComment POST /tickets/:id/comments. Accepts JSON or multipart.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthenticated("identity required")
	}

	body := ""
	internal := false
	var uploads []service.AttachmentUpload
	if form, err := c.MultipartForm(); err == nil && form != nil {
		body = formValue(form, "body")
		internal, _ = strconv.ParseBool(formValue(form, "internal"))
		var closeFiles func()
		uploads, closeFiles, err = uploadsFromForm(form)
		if err != nil {
			return err
		}
		defer closeFiles()
	} else {
		var req dto.CreateCommentRequest
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
		body = req.Body
		internal = req.Internal
	}

	input := service.NewPublicComment(body, uploads...)
	if internal {
		input = service.NewInternalNote(body, uploads...)
	}
	comment, err := h.tickets.AddComment(c.Context(), actor, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

// DownloadAttachment GET /attachments/:id.
func (h *TicketsHandler) DownloadAttachment(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthenticated("identity required")
	}
	attachment, rc, err := h.tickets.OpenAttachment(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	c.Attachment(attachment.FileName)
	return c.SendStream(rc, int(attachment.SizeBytes))
}

func formValue(form *multipart.Form, key string) string {
	values := form.Value[key]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// uploadsFromForm opens every "files" part. The returned closer must run
// after the service has consumed the streams.
func uploadsFromForm(form *multipart.Form) ([]service.AttachmentUpload, func(), error) {
	headers := form.File["files"]
	uploads := make([]service.AttachmentUpload, 0, len(headers))
	closers := make([]func() error, 0, len(headers))
	closeAll := func() {
		for _, closeFn := range closers {
			_ = closeFn()
		}
	}
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			closeAll()
			return nil, nil, apperrors.NewValidationError("unreadable upload", map[string]any{"file_name": header.Filename})
		}
		closers = append(closers, f.Close)
		uploads = append(uploads, service.AttachmentUpload{
			FileName:  header.Filename,
			SizeBytes: header.Size,
			Content:   f,
		})
	}
	return uploads, closeAll, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:         ticket.ID,
		Title:      ticket.Title,
		Status:     ticket.Status,
		Priority:   ticket.Priority,
		CreatorID:  ticket.CreatorID,
		AssigneeID: ticket.AssigneeID,
		CreatedAt:  ticket.CreatedAt,
		UpdatedAt:  ticket.UpdatedAt,
	}
}

func ticketDetail(detail *service.TicketDetail) dto.TicketDetailResponse {
	ticket := detail.Ticket
	comments := make([]dto.CommentResponse, 0, len(detail.Comments))
	for i := range detail.Comments {
		comments = append(comments, commentResponse(&detail.Comments[i]))
	}
	return dto.TicketDetailResponse{
		ID:          ticket.ID,
		Title:       ticket.Title,
		Description: ticket.Description,
		Status:      ticket.Status,
		Priority:    ticket.Priority,
		CreatorID:   ticket.CreatorID,
		AssigneeID:  ticket.AssigneeID,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
		Comments:    comments,
		Attachments: attachmentResponses(detail.Attachments),
	}
}

func commentResponse(comment *domain.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:          comment.ID,
		AuthorID:    comment.AuthorID,
		Body:        comment.Body,
		Internal:    comment.Internal,
		Attachments: attachmentResponses(comment.Attachments),
		CreatedAt:   comment.CreatedAt,
	}
}

func attachmentResponses(attachments []domain.Attachment) []dto.AttachmentResponse {
	result := make([]dto.AttachmentResponse, 0, len(attachments))
	for i := range attachments {
		attachment := &attachments[i]
		result = append(result, dto.AttachmentResponse{
			ID:          attachment.ID,
			FileName:    attachment.FileName,
			SizeBytes:   attachment.SizeBytes,
			SizeDisplay: attachment.SizeDisplay(),
			IsImage:     attachment.IsImage(),
			UploadedAt:  attachment.UploadedAt,
		})
	}
	return result
}
