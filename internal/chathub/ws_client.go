package chathub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"friendchat/backend/internal/config"
	"friendchat/backend/internal/models"

	"github.com/gorilla/websocket"
)

// WebSocketClient реалізує інтерфейс chathub.Client
type WebSocketClient struct {
	SessionID   string
	UserID      string
	DisplayName string
	Conn        *websocket.Conn
	Hub         *ManagerService
	Send        chan models.Event

	ctx       context.Context
	log       *slog.Logger
	closeOnce sync.Once
}

// NewWebSocketClient wraps an upgraded connection. ctx bounds the storage calls made
// while handling this client's events.
func NewWebSocketClient(ctx context.Context, conn *websocket.Conn, hub *ManagerService, sessionID, userID, displayName string, bufferSize int, log *slog.Logger) *WebSocketClient {
	return &WebSocketClient{
		SessionID:   sessionID,
		UserID:      userID,
		DisplayName: displayName,
		Conn:        conn,
		Hub:         hub,
		Send:        make(chan models.Event, bufferSize),
		ctx:         ctx,
		log:         log,
	}
}

// --- Реалізація методів інтерфейсу ---

func (c *WebSocketClient) GetSessionID() string                { return c.SessionID }
func (c *WebSocketClient) GetUserID() string                   { return c.UserID }
func (c *WebSocketClient) GetDisplayName() string              { return c.DisplayName }
func (c *WebSocketClient) GetSendChannel() chan<- models.Event { return c.Send }

// Run запускає 'pumps' для WebSocket
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close закриває Send канал (що зупинить writePump)
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
	// readPump зупиниться сам, коли writePump закриє Conn
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Disconnect(c.SessionID)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(config.MaxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("Error reading message", "session_id", c.SessionID, "error", err)
			}
			break
		}

		// Події одного з'єднання обробляються послідовно, в порядку надходження
		c.Hub.HandleEvent(c.ctx, c.SessionID, message)
	}
}

// writePump читає події з каналу Send і записує їх у WebSocket, по одному кадру на подію.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(config.PingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if !ok {
				// Канал закрито хабом, закриваємо з'єднання WS
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(event); err != nil {
				return
			}

			// Перевіряємо, чи є ще події у каналі
			n := len(c.Send)
			for i := 0; i < n; i++ {
				next, ok := <-c.Send
				if !ok {
					_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.write(next); err != nil {
					return
				}
			}

		case <-ticker.C:
			// Надсилаємо Ping для підтримки з'єднання активним
			_ = c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) write(event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		c.log.Error("Error encoding event", "session_id", c.SessionID, "event", event.Type, "error", err)
		return nil
	}
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}
