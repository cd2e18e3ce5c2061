package handler

import (
	"net/http"

	"friendchat/backend/internal/errs"
	"friendchat/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type sendRequestBody struct {
	ToUserEmail string `json:"to_user_email" binding:"required"`
}

type respondRequestBody struct {
	RequestID string               `json:"request_id" binding:"required"`
	Status    models.RequestStatus `json:"status" binding:"required"`
}

type removeRequestBody struct {
	RequestID string `json:"request_id" binding:"required"`
}

func (h *Handler) SendFriendRequest(c *gin.Context) {
	var body sendRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, errs.Wrap(errs.ErrMissingIdentifier, err))
		return
	}

	req, err := h.Friends.SendRequestByEmail(c.Request.Context(), currentUserID(c), body.ToUserEmail)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, "Friend request sent successfully.", req)
}

func (h *Handler) RespondFriendRequest(c *gin.Context) {
	var body respondRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, errs.Wrap(errs.ErrMissingIdentifier, err))
		return
	}

	req, err := h.Friends.Respond(c.Request.Context(), body.RequestID, currentUserID(c), body.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Friend request "+string(req.Status)+".", req)
}

func (h *Handler) RemoveFriendRequest(c *gin.Context) {
	var body removeRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, errs.Wrap(errs.ErrMissingIdentifier, err))
		return
	}

	req, err := h.Friends.Cancel(c.Request.Context(), body.RequestID, currentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Friend request removed.", req)
}

func (h *Handler) ListFriends(c *gin.Context) {
	userID := c.Param("userId")
	if !h.requireSelf(c, userID) {
		return
	}
	friends, err := h.Friends.ListFriends(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Friends retrieved.", friends)
}

func (h *Handler) ListIncomingRequests(c *gin.Context) {
	userID := c.Param("userId")
	if !h.requireSelf(c, userID) {
		return
	}
	requests, err := h.Friends.ListIncoming(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Friend requests retrieved.", requests)
}

func (h *Handler) ListOutgoingRequests(c *gin.Context) {
	userID := c.Param("userId")
	if !h.requireSelf(c, userID) {
		return
	}
	requests, err := h.Friends.ListOutgoing(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Sent friend requests retrieved.", requests)
}
