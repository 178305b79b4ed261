package worker

import (
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/service"
)

// StartStatsWorker subscribes dashboard cache invalidation to ticket events.
func StartStatsWorker(statsService *service.StatsService, dispatcher events.Dispatcher) {
	if statsService == nil {
		return
	}
	statsService.RegisterHandlers(dispatcher)
}
