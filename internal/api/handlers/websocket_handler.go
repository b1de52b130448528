package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gocomet/rider-service/pkg/auth"
	apperrors "github.com/gocomet/rider-service/pkg/errors"
	"github.com/gocomet/rider-service/pkg/logger"
	"github.com/gocomet/rider-service/pkg/websocket"
)

// HandleWebSocket handles GET /v1/ws. Browsers cannot set headers on the
// upgrade request, so the token may also arrive as ?token=.
func (h *Handlers) HandleWebSocket(c *gin.Context) {
	raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if raw == "" {
		raw = c.Query("token")
	}
	claims, err := h.Tokens.Validate(raw)
	if err != nil {
		h.respondError(c, apperrors.Unauthorized("Invalid or expired token", err))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Error("Failed to upgrade to WebSocket", logger.Err(err))
		return
	}

	client := websocket.NewClient(h.Hub, conn, claims.UserID, claims.Role, h.Logger)
	h.Hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// HealthCheck handles GET /health. Any failing dependency makes it 503.
func (h *Handlers) HealthCheck(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	deps := make(map[string]string, len(h.Checks))
	for name, check := range h.Checks {
		if err := check(c.Request.Context()); err != nil {
			h.Logger.Warn("Health check failed", logger.String("dependency", name), logger.Err(err))
			deps[name] = "down"
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		deps[name] = "up"
	}

	c.JSON(code, gin.H{
		"status":       status,
		"dependencies": deps,
		"websocket_clients": map[string]int{
			"total":        h.Hub.GetActiveConnections(),
			auth.RoleRider: h.Hub.GetClientsByUserType(auth.RoleRider),
			auth.RoleAdmin: h.Hub.GetClientsByUserType(auth.RoleAdmin),
		},
	})
}
