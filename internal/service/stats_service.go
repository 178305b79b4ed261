package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

const (
	statsKeyAll    = "helpdesk:stats:all"
	statsKeyUser   = "helpdesk:stats:user:"
	statsCacheTTL  = 60 * time.Second
	dashboardLimit = 10
	sidebarLimit   = 5
)

// DashboardStats holds ticket counts for the dashboard header.
type DashboardStats struct {
	Total          int64 `json:"total"`
	Open           int64 `json:"open"`
	InProgress     int64 `json:"in_progress"`
	WaitingOnAsker int64 `json:"waiting_on_asker"`
	Resolved       int64 `json:"resolved"`
}

// Dashboard is the role-shaped landing view. Unassigned and MyAssigned
// are only populated for employees.
type Dashboard struct {
	IsEmployee bool
	Stats      DashboardStats
	Tickets    []domain.Ticket
	Unassigned []domain.Ticket
	MyAssigned []domain.Ticket
}

// StatsService builds dashboards, caching counts in redis.
type StatsService struct {
	tickets repository.TicketRepository
	redis   *persistence.Redis
	logger  *zap.Logger
}

// NewStatsService constructs the service. Redis may be nil; caching then
// simply turns off.
func NewStatsService(tickets repository.TicketRepository, redis *persistence.Redis, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{tickets: tickets, redis: redis, logger: logger}
}

// BuildDashboard assembles the landing view for the actor.
func (s *StatsService) BuildDashboard(ctx context.Context, actor *domain.User) (*Dashboard, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthenticated("identity required")
	}

	dashboard := &Dashboard{IsEmployee: actor.IsEmployee()}

	stats, err := s.statsFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	dashboard.Stats = stats

	if actor.IsEmployee() {
		tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{Limit: dashboardLimit})
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		dashboard.Tickets = tickets

		unassigned, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{Unassigned: true, Limit: sidebarLimit})
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		dashboard.Unassigned = unassigned

		actorID := actor.ID
		assigned, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{AssigneeID: &actorID, Limit: sidebarLimit})
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		dashboard.MyAssigned = assigned
	} else {
		creatorID := actor.ID
		tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{CreatorID: &creatorID, Limit: dashboardLimit})
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		dashboard.Tickets = tickets
	}

	return dashboard, nil
}

// RegisterHandlers subscribes cache invalidation to ticket events.
func (s *StatsService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketDeleted,
	} {
		dispatcher.Subscribe(eventType, s.invalidate)
	}
}

func (s *StatsService) invalidate(ctx context.Context, event events.Event) error {
	if s.redis == nil || s.redis.Client == nil {
		return nil
	}
	keys := []string{statsKeyAll}
	if event.CreatorID != "" {
		keys = append(keys, statsKeyUser+event.CreatorID)
	}
	if err := s.redis.Client.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
	return nil
}

func (s *StatsService) statsFor(ctx context.Context, actor *domain.User) (DashboardStats, error) {
	key := statsKeyAll
	var creatorID *string
	if !actor.IsEmployee() {
		id := actor.ID
		creatorID = &id
		key = statsKeyUser + actor.ID
	}

	if cached, ok := s.cachedStats(ctx, key); ok {
		return cached, nil
	}

	counts, err := s.tickets.CountByStatus(ctx, creatorID)
	if err != nil {
		return DashboardStats{}, apperrors.MapError(err)
	}
	stats := DashboardStats{
		Open:           counts[domain.TicketStatusOpen],
		InProgress:     counts[domain.TicketStatusInProgress],
		WaitingOnAsker: counts[domain.TicketStatusWaitingOnAsker],
		Resolved:       counts[domain.TicketStatusResolved],
	}
	for _, count := range counts {
		stats.Total += count
	}

	s.cacheStats(ctx, key, stats)
	return stats, nil
}

func (s *StatsService) cachedStats(ctx context.Context, key string) (DashboardStats, bool) {
	if s.redis == nil || s.redis.Client == nil {
		return DashboardStats{}, false
	}
	raw, err := s.redis.Client.Get(ctx, key).Bytes()
	if err != nil {
		return DashboardStats{}, false
	}
	var stats DashboardStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return DashboardStats{}, false
	}
	return stats, true
}

func (s *StatsService) cacheStats(ctx context.Context, key string, stats DashboardStats) {
	if s.redis == nil || s.redis.Client == nil {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.redis.Client.Set(ctx, key, raw, statsCacheTTL).Err(); err != nil {
		s.logger.Warn("stats cache write failed", zap.Error(err))
	}
}
