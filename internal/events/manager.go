package events

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Emitter is the publishing side used by services.
type Emitter interface {
	Emit(eventType EventType, module string, data map[string]interface{})
}

// Manager logs events and publishes them on the bus.
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("service", "events").Logger(),
	}
}

// Emit emits an event
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		m.log.Error().Err(err).Str("event_type", string(eventType)).Msg("Failed to marshal event")
	} else {
		m.log.Debug().RawJSON("event", eventJSON).Msg("Event emitted")
	}

	if m.bus != nil {
		m.bus.Publish(event)
	}
}

// Bus returns the underlying bus for subscribers.
func (m *Manager) Bus() *Bus {
	return m.bus
}

// NopEmitter discards events. Used where no bus is wired (CLI, tests).
type NopEmitter struct{}

// Emit does nothing.
func (NopEmitter) Emit(EventType, string, map[string]interface{}) {}
