package handler

import (
	"context"

	"research-chat-be/internal/pkg/logger"
	"research-chat-be/internal/pkg/serverutils"
	"research-chat-be/internal/service"
	internalWS "research-chat-be/internal/websocket"
	"research-chat-be/pkg/events"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// PresetFeedHandler serves the preset change websocket and relays bus events into the hub.
type PresetFeedHandler struct {
	hub       *internalWS.Hub
	jwtSecret string
	logger    logger.ILogger
}

func NewPresetFeedHandler(hub *internalWS.Hub, jwtSecret string, log logger.ILogger) *PresetFeedHandler {
	return &PresetFeedHandler{
		hub:       hub,
		jwtSecret: jwtSecret,
		logger:    log,
	}
}

func (h *PresetFeedHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/admin/presets/ws", h.ServeWs)
}

// ServeWs authenticates the handshake and upgrades it.
// Browsers cannot set headers on a websocket, so the token may come as ?token=.
func (h *PresetFeedHandler) ServeWs(c *fiber.Ctx) error {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Missing token (Query 'token' or Header 'Authorization')"))
	}

	userID, err := serverutils.ParseUserToken(tokenStr, h.jwtSecret)
	if err != nil {
		h.logger.Warn("PresetFeedHandler", "Invalid token in WS handshake", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("PresetFeedHandler", "Starting WebSocket session", map[string]interface{}{"user_id": userID})
		internalWS.ServeWs(h.hub, conn, userID)
		h.logger.Info("PresetFeedHandler", "WebSocket session ended", map[string]interface{}{"user_id": userID})
	})(c)
}

// HandlePresetEvent is the NATS consumer for PRESET_CHANGED.
func (h *PresetFeedHandler) HandlePresetEvent(_ context.Context, event events.Event) error {
	change, err := service.PresetEventFromPayload(event.Payload())
	if err != nil {
		// Redelivery will not make a malformed payload valid.
		h.logger.Error("PresetFeedHandler", "Dropping malformed preset event", map[string]interface{}{"error": err.Error()})
		return nil
	}
	h.hub.BroadcastPresetChange(change)
	return nil
}
