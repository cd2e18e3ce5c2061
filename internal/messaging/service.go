// Package messaging persists messages and fans them out to the room they belong to.
// A message is published only after it has been stored, so a storage failure never
// leaves a partial broadcast behind.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"friendchat/backend/internal/errs"
	"friendchat/backend/internal/models"
)

type Store interface {
	SaveMessage(ctx context.Context, msg *models.Message) error
	GetMessages(ctx context.Context, conversationID string) ([]models.Message, error)
}

// Publisher is the publish half of the broadcast capability.
type Publisher interface {
	Publish(room string, event models.Event)
}

type Service struct {
	store      Store
	publisher  Publisher
	publicRoom string
	log        *slog.Logger
}

func NewService(store Store, publisher Publisher, publicRoom string, log *slog.Logger) *Service {
	return &Service{store: store, publisher: publisher, publicRoom: publicRoom, log: log}
}

// PublicRoom returns the name of the room every connection joins on connect.
func (s *Service) PublicRoom() string {
	return s.publicRoom
}

// SendToConversation stores the message and publishes it to the conversation room,
// which includes the sender's other sessions. Room membership is checked by the caller.
func (s *Service) SendToConversation(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	if conversationID == "" || senderID == "" {
		return nil, errs.ErrMissingIdentifier
	}
	msg, err := s.persist(ctx, conversationID, senderID, content)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(conversationID, models.Event{
		Type: models.EventConversationMessage,
		Data: models.ConversationMessagePayload{
			From:     msg.SenderID,
			FromName: senderName(msg),
			Content:  msg.Content,
			Message:  msg,
		},
	})
	return msg, nil
}

// SendToBroadcastRoom stores the message under the public room and publishes it there.
func (s *Service) SendToBroadcastRoom(ctx context.Context, senderID, content string) (*models.Message, error) {
	if senderID == "" {
		return nil, errs.ErrMissingIdentifier
	}
	msg, err := s.persist(ctx, s.publicRoom, senderID, content)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(s.publicRoom, models.Event{
		Type: models.EventPublicRoomMessage,
		Data: models.PublicRoomMessagePayload{Message: msg},
	})
	return msg, nil
}

// History returns every message of the conversation, oldest first. Callers must have
// confirmed that the requester participates in it.
func (s *Service) History(ctx context.Context, conversationID string) ([]models.Message, error) {
	if conversationID == "" {
		return nil, errs.ErrMissingIdentifier
	}
	history, err := s.store.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, errs.Internal(fmt.Errorf("load history: %w", err))
	}
	return history, nil
}

func (s *Service) persist(ctx context.Context, room, senderID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errs.ErrEmptyContent
	}
	msg := &models.Message{ConversationID: room, SenderID: senderID, Content: content}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		s.log.Error("Failed to save message", "room", room, "sender_id", senderID, "error", err)
		return nil, errs.Internal(fmt.Errorf("save message: %w", err))
	}
	return msg, nil
}

func senderName(msg *models.Message) string {
	if msg.Sender == nil {
		return ""
	}
	return msg.Sender.Name
}
