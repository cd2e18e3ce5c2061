package handler

import (
	"context"
	"log/slog"
	"net/http"

	"friendchat/backend/internal/auth"
	"friendchat/backend/internal/chathub"
	"friendchat/backend/internal/conversation"
	"friendchat/backend/internal/errs"
	"friendchat/backend/internal/friendship"
	"friendchat/backend/internal/localization"
	"friendchat/backend/internal/messaging"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Handler містить посилання на ChatHub та доменні сервіси
type Handler struct {
	Hub           *chathub.ManagerService
	Friends       *friendship.Service
	Messages      *messaging.Service
	Conversations *conversation.Resolver
	Tokens        *auth.TokenService
	Localizer     *localization.Localizer

	// BaseContext outlives individual requests; websocket clients use it for the
	// storage calls made while their connection is open.
	BaseContext    context.Context
	AllowedOrigin  string
	SendBufferSize int

	log      *slog.Logger
	upgrader websocket.Upgrader
}

type Options struct {
	Hub            *chathub.ManagerService
	Friends        *friendship.Service
	Messages       *messaging.Service
	Conversations  *conversation.Resolver
	Tokens         *auth.TokenService
	Localizer      *localization.Localizer
	BaseContext    context.Context
	AllowedOrigin  string
	SendBufferSize int
}

func NewHandler(opts Options, log *slog.Logger) *Handler {
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	h := &Handler{
		Hub:            opts.Hub,
		Friends:        opts.Friends,
		Messages:       opts.Messages,
		Conversations:  opts.Conversations,
		Tokens:         opts.Tokens,
		Localizer:      opts.Localizer,
		BaseContext:    opts.BaseContext,
		AllowedOrigin:  opts.AllowedOrigin,
		SendBufferSize: opts.SendBufferSize,
		log:            log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return h.originAllowed(r.Header.Get("Origin")) },
	}
	return h
}

// NewRouter wires every route. rateLimit may be nil.
func NewRouter(h *Handler, rateLimit gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), h.OriginMiddleware())
	if rateLimit != nil {
		r.Use(rateLimit)
	}

	r.GET("/healthz", h.Health)

	authed := r.Group("/", h.AuthMiddleware(false))
	friend := authed.Group("/friend")
	friend.POST("/send-request", h.SendFriendRequest)
	friend.POST("/response-request", h.RespondFriendRequest)
	friend.DELETE("/remove-request", h.RemoveFriendRequest)
	friend.GET("/all/:userId", h.ListFriends)
	friend.GET("/all/requests/:userId", h.ListIncomingRequests)
	friend.GET("/all/sent-requests/:userId", h.ListOutgoingRequests)

	message := authed.Group("/message")
	message.GET("/all/msg/public", h.PublicHistory)
	message.GET("/all/:conversationId", h.ConversationHistory)

	r.GET("/ws", h.AuthMiddleware(true), h.ServeWebSocket)
	return r
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.Hub.SessionCount()})
}

func (h *Handler) ok(c *gin.Context, status int, message string, data any) {
	c.JSON(status, gin.H{"message": message, "data": data})
}

// fail renders err with the status of its kind. Internal causes are logged, never sent.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	if kind == errs.KindInternal {
		h.log.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	code := errs.CodeOf(err)
	if kind == errs.KindInternal {
		code = "internal"
	}
	c.AbortWithStatusJSON(errs.HTTPStatus(kind), gin.H{
		"error": h.Localizer.ErrorMessage(language(c), err),
		"code":  code,
	})
}

func language(c *gin.Context) string {
	return localization.LanguageFromHeader(c.GetHeader("Accept-Language"))
}
