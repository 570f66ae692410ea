package handler

import (
	"context"

	"research-chat-be/internal/pkg/logger"
	"research-chat-be/pkg/events"
)

// ActivityHandler records conversation events from the bus in the activity log.
type ActivityHandler struct {
	logger logger.ILogger
}

func NewActivityHandler(log logger.ILogger) *ActivityHandler {
	return &ActivityHandler{logger: log}
}

func (h *ActivityHandler) Handle(_ context.Context, event events.Event) error {
	h.logger.Info("ActivityFeed", event.EventType(), map[string]interface{}{
		"occurred_at": event.Timestamp(),
		"payload":     event.Payload(),
	})
	return nil
}
