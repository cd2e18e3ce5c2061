package handler

import (
	"net/http"

	"friendchat/backend/internal/errs"

	"github.com/gin-gonic/gin"
)

// ConversationHistory returns the full history of a conversation the caller takes part in.
func (h *Handler) ConversationHistory(c *gin.Context) {
	ctx := c.Request.Context()
	conversationID := c.Param("conversationId")

	ok, err := h.Conversations.IsParticipant(ctx, conversationID, currentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok {
		h.fail(c, errs.ErrNotParticipant)
		return
	}

	history, err := h.Messages.History(ctx, conversationID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Messages retrieved.", history)
}

// PublicHistory returns the messages posted to the public room.
func (h *Handler) PublicHistory(c *gin.Context) {
	history, err := h.Messages.History(c.Request.Context(), h.Messages.PublicRoom())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Messages retrieved.", history)
}
