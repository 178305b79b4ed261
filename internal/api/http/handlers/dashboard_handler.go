package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// DashboardHandler serves the role-shaped landing view.
type DashboardHandler struct {
	stats *service.StatsService
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(statsService *service.StatsService) *DashboardHandler {
	return &DashboardHandler{stats: statsService}
}

// Dashboard GET /dashboard.
func (h *DashboardHandler) Dashboard(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthenticated("identity required")
	}
	dashboard, err := h.stats.BuildDashboard(c.Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dashboardResponse(dashboard)})
}

func dashboardResponse(dashboard *service.Dashboard) dto.DashboardResponse {
	return dto.DashboardResponse{
		IsEmployee: dashboard.IsEmployee,
		Stats: dto.DashboardStats{
			Total:          dashboard.Stats.Total,
			Open:           dashboard.Stats.Open,
			InProgress:     dashboard.Stats.InProgress,
			WaitingOnAsker: dashboard.Stats.WaitingOnAsker,
			Resolved:       dashboard.Stats.Resolved,
		},
		Tickets:    ticketSummaries(dashboard.Tickets),
		Unassigned: ticketSummaries(dashboard.Unassigned),
		MyAssigned: ticketSummaries(dashboard.MyAssigned),
	}
}

func ticketSummaries(tickets []domain.Ticket) []dto.TicketSummary {
	if len(tickets) == 0 {
		return nil
	}
	result := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		result = append(result, ticketSummary(&tickets[i]))
	}
	return result
}
