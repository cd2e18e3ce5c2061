package storage

import (
	"context"
	"errors"

	"friendchat/backend/internal/models"

	"gorm.io/gorm"
)

// SaveMessage зберігає повідомлення в PostgreSQL. The id and a strictly increasing
// timestamp are assigned here, and the sender is attached for outbound payloads.
func (s *Service) SaveMessage(ctx context.Context, msg *models.Message) error {
	msg.ID = ""
	msg.Sender = nil
	msg.CreatedAt = s.nextTimestamp()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		var sender models.User
		err := tx.Where("id = ?", msg.SenderID).Take(&sender).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		msg.Sender = &sender
		return nil
	})
	return translate(err)
}

// GetMessages отримує історію повідомлень, сортуючи за часом створення.
func (s *Service) GetMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var history []models.Message
	err := s.DB.WithContext(ctx).
		Preload("Sender").
		Where("conversation_id = ?", conversationID).
		Order("created_at asc").
		Find(&history).Error
	if err != nil {
		return nil, translate(err)
	}
	return history, nil
}
