package models

import "encoding/json"

// Inbound event types.
const (
	EventJoinConversation    = "join_conversation"
	EventConversationMessage = "conversation_message"
	EventPublicRoomMessage   = "public_room_message"
	EventTyping              = "typing"
	EventRemoveTyping        = "remove_typing"
)

// Outbound-only event types.
const (
	EventUserOnline         = "user_online"
	EventUserOffline        = "user_offline"
	EventJoinedConversation = "joined_conversation"
	EventError              = "error"
	EventNewFriendRequest   = "new_friend_request"
	EventRespondFriendReq   = "respond_friend_req"
	EventRemoveFriendReq    = "remove_friend_req"
)

// Event is what the hub delivers to a connection.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// InboundEvent is a frame read from a connection. Data is decoded per Type.
type InboundEvent struct {
	Type string          `json:"type" validate:"required"`
	Data json.RawMessage `json:"data"`
}

type JoinConversationRequest struct {
	OtherUserID string `json:"other_user_id" validate:"required"`
}

type ConversationMessageRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
	Content        string `json:"content" validate:"required"`
}

type PublicRoomMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

type TypingRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
}

type UserOfflinePayload struct {
	UserID string `json:"user_id"`
}

type JoinedConversationPayload struct {
	ConversationID string `json:"conversation_id"`
	E2EEnabled     bool   `json:"e2e_enabled"`
}

type ConversationMessagePayload struct {
	From     string   `json:"from"`
	FromName string   `json:"from_name"`
	Content  string   `json:"content"`
	Message  *Message `json:"message"`
}

type PublicRoomMessagePayload struct {
	Message *Message `json:"message"`
}

type TypingPayload struct {
	From           string `json:"from"`
	FromName       string `json:"from_name,omitempty"`
	ConversationID string `json:"conversation_id"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// FriendRequestPayload is sent to both parties of a request transition.
type FriendRequestPayload struct {
	RequestID  string        `json:"request_id"`
	FromUserID string        `json:"from_user_id"`
	ToUserID   string        `json:"to_user_id"`
	Status     RequestStatus `json:"status"`
}
