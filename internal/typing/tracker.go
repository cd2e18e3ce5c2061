// Package typing relays ephemeral typing signals to conversation rooms. Nothing is
// stored and signals have no TTL; callers suppress repeated starts.
package typing

import (
	"friendchat/backend/internal/models"
)

type Publisher interface {
	Publish(room string, event models.Event)
}

type Tracker struct {
	publisher Publisher
}

func NewTracker(publisher Publisher) *Tracker {
	return &Tracker{publisher: publisher}
}

// SetTyping announces that userID started typing in the conversation.
func (t *Tracker) SetTyping(conversationID, userID, displayName string) {
	t.publisher.Publish(conversationID, models.Event{
		Type: models.EventTyping,
		Data: models.TypingPayload{From: userID, FromName: displayName, ConversationID: conversationID},
	})
}

// ClearTyping announces that userID stopped typing in the conversation.
func (t *Tracker) ClearTyping(conversationID, userID string) {
	t.publisher.Publish(conversationID, models.Event{
		Type: models.EventRemoveTyping,
		Data: models.TypingPayload{From: userID, ConversationID: conversationID},
	})
}
