package handler

import (
	"friendchat/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ServeWebSocket оновлює HTTP-з'єднання до WebSocket. The caller is already
// authenticated by AuthMiddleware.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	claims := currentClaims(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response
		h.log.Warn("Failed to upgrade connection", "error", err)
		return
	}

	// 1. Створення нового клієнта
	client := chathub.NewWebSocketClient(h.BaseContext, conn, h.Hub,
		uuid.NewString(), claims.UserID(), claims.Name, h.SendBufferSize, h.log)

	// 2. Реєстрація клієнта в Chat Hub
	if _, err := h.Hub.Connect(client, language(c)); err != nil {
		h.log.Warn("Rejected websocket session", "error", err)
		_ = conn.Close()
		return
	}

	// 3. Запуск клієнта
	client.Run()
}
