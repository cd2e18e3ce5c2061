package storage

import (
	"context"
	"errors"

	"friendchat/backend/internal/models"

	"gorm.io/gorm"
)

// FindOrCreateConversation returns the conversation whose participant set is exactly
// {userA, userB}, creating it with both participant rows in the same transaction when
// absent. The bool reports whether this call created it. A concurrent creator that
// committed first makes the insert fail with ErrDuplicate; callers retry the lookup.
func (s *Service) FindOrCreateConversation(ctx context.Context, userA, userB string) (*models.Conversation, bool, error) {
	key := models.PairKey(userA, userB)

	var conv models.Conversation
	created := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("pair_key = ?", key).Take(&conv).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		conv = models.Conversation{PairKey: key, CreatedAt: s.nextTimestamp()}
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		participants := []models.ConversationParticipant{
			{ConversationID: conv.ID, UserID: userA},
			{ConversationID: conv.ID, UserID: userB},
		}
		if err := tx.Create(&participants).Error; err != nil {
			return err
		}
		conv.Participants = participants
		created = true
		return nil
	})
	if err != nil {
		return nil, false, translate(err)
	}
	return &conv, created, nil
}

// GetConversationParticipants returns the user ids of a conversation.
func (s *Service) GetConversationParticipants(ctx context.Context, conversationID string) ([]string, error) {
	var userIDs []string
	err := s.DB.WithContext(ctx).
		Model(&models.ConversationParticipant{}).
		Where("conversation_id = ?", conversationID).
		Order("user_id asc").
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, translate(err)
	}
	if len(userIDs) == 0 {
		return nil, ErrNotFound
	}
	return userIDs, nil
}
