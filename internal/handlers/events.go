package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"psyeval/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventsHandler streams case events to open viewers over SSE. Clients
// re-derive case state from the snapshot endpoints on every event instead
// of trusting the delta.
type EventsHandler struct {
	log *zap.Logger
	bus events.Bus
}

func NewEventsHandler(log *zap.Logger, bus events.Bus) *EventsHandler {
	return &EventsHandler{log: log, bus: bus}
}

// Stream subscribes the connection to one case's events, or to all cases
// when no caso query parameter is given.
func (h *EventsHandler) Stream(c *gin.Context) {
	filter := uuid.Nil
	if raw := c.Query("caso"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid caso filter"})
			return
		}
		filter = parsed
	}

	ch := make(chan events.CaseEvent, 16)
	unsubscribe := h.bus.Subscribe(filter, func(ev events.CaseEvent) {
		select {
		case ch <- ev:
		default:
			// Slow consumer; drop rather than block the bus.
		}
	})
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev := <-ch:
			payload, err := json.Marshal(ev)
			if err != nil {
				h.log.Error("Failed to marshal case event", zap.Error(err))
				return true
			}
			c.SSEvent(ev.Tipo, string(payload))
			return true
		}
	})
}
