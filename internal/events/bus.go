// Package events re-exports the platform event bus for convenience.
// Internal modules import events from here; the implementation lives in
// platform/events.
package events

import (
	platformevents "lead_protection_backend/platform/events"
	"lead_protection_backend/platform/logger"
)

// InMemoryBus is a type alias to the platform InMemoryBus.
type InMemoryBus = platformevents.InMemoryBus

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}
