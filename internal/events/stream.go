package events

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	streamBuffer      = 100
	heartbeatInterval = 30 * time.Second
	writeTimeout      = 10 * time.Second
)

// ViewCounter tracks consumers that need live rates. The rate cache keeps
// refreshing in the background while the count is positive.
type ViewCounter interface {
	Acquire()
	Release()
}

// StreamHandler streams bus events to websocket clients.
type StreamHandler struct {
	bus   *Bus
	views ViewCounter
	log   zerolog.Logger
}

// NewStreamHandler creates a stream handler. views may be nil.
func NewStreamHandler(bus *Bus, views ViewCounter, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		bus:   bus,
		views: views,
		log:   log.With().Str("handler", "events_stream").Logger(),
	}
}

// message is the wire form of one streamed frame.
type message struct {
	Type      string                 `json:"type"`
	Module    string                 `json:"module,omitempty"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// ServeHTTP handles GET /api/events/stream. The optional types query
// parameter is a comma separated filter.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	types := parseTypes(r.URL.Query().Get("types"))

	if h.views != nil {
		h.views.Acquire()
		defer h.views.Release()
	}

	ch := make(chan *Event, streamBuffer)
	handler := func(e *Event) {
		select {
		case ch <- e:
		default:
			h.log.Warn().Str("event_type", string(e.Type)).Msg("Event channel full, dropping event")
		}
	}
	for _, t := range types {
		unsubscribe := h.bus.Subscribe(t, handler)
		defer unsubscribe()
	}

	// Clients only listen; CloseRead handles control frames and reports disconnects.
	ctx := conn.CloseRead(r.Context())

	h.log.Info().Int("types", len(types)).Msg("Client connected to event stream")

	if err := h.write(ctx, conn, message{Type: "connected", Timestamp: now()}); err != nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case e := <-ch:
			err := h.write(ctx, conn, message{
				Type:      string(e.Type),
				Module:    e.Module,
				Timestamp: e.Timestamp.Format(time.RFC3339),
				Data:      e.Data,
			})
			if err != nil {
				return
			}
		case <-heartbeat.C:
			if err := h.write(ctx, conn, message{Type: "heartbeat", Timestamp: now()}); err != nil {
				return
			}
		}
	}
}

func (h *StreamHandler) write(ctx context.Context, conn *websocket.Conn, m message) error {
	data, err := json.Marshal(m)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal event")
		return nil
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		h.log.Debug().Err(err).Msg("Failed to write to event stream")
		return err
	}
	return nil
}

func parseTypes(filter string) []EventType {
	if filter == "" {
		return AllEventTypes
	}
	var out []EventType
	for _, t := range strings.Split(filter, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, EventType(strings.ToUpper(t)))
		}
	}
	return out
}

func now() string {
	return time.Now().Format(time.RFC3339)
}
