package events

import (
	platformevents "taller_portal_backend/platform/events"
	"taller_portal_backend/platform/logger"
)

// InMemoryBus aliases the platform bus so modules only ever import
// internal/events.
type InMemoryBus = platformevents.InMemoryBus

// NewInMemoryBus builds the process-wide event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}
