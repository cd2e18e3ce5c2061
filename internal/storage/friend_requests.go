package storage

import (
	"context"
	"errors"

	"friendchat/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequestChange is the write a RequestMutation asks for. At most one of Save and
// Delete applies; Friends are inserted in the same transaction.
type RequestChange struct {
	Save    *models.FriendRequest
	Delete  bool
	Friends []models.Friend
}

// RequestMutation inspects the locked current row (nil when absent) and decides what
// to write. Returning an error rolls the transaction back and is passed through as is.
type RequestMutation func(current *models.FriendRequest) (RequestChange, error)

// UpdateFriendRequestByPair runs fn against the pair's row under a row lock.
func (s *Service) UpdateFriendRequestByPair(ctx context.Context, userA, userB string, fn RequestMutation) (*models.FriendRequest, error) {
	var result *models.FriendRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := lockRequest(tx, "pair_key = ?", models.PairKey(userA, userB))
		if err != nil {
			return err
		}
		result, err = s.applyRequestChange(tx, current, fn)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}
	return result, nil
}

// UpdateFriendRequestByID runs fn against the row with the given id under a row lock.
func (s *Service) UpdateFriendRequestByID(ctx context.Context, requestID string, fn RequestMutation) (*models.FriendRequest, error) {
	var result *models.FriendRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := lockRequest(tx, "id = ?", requestID)
		if err != nil {
			return err
		}
		result, err = s.applyRequestChange(tx, current, fn)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}
	return result, nil
}

func lockRequest(tx *gorm.DB, query string, arg string) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(query, arg).Take(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *Service) applyRequestChange(tx *gorm.DB, current *models.FriendRequest, fn RequestMutation) (*models.FriendRequest, error) {
	change, err := fn(current)
	if err != nil {
		return nil, err
	}

	var result *models.FriendRequest
	switch {
	case change.Delete:
		if current == nil {
			return nil, ErrNotFound
		}
		if err := tx.Delete(&models.FriendRequest{}, "id = ?", current.ID).Error; err != nil {
			return nil, err
		}
		result = current
	case change.Save != nil:
		now := s.nextTimestamp()
		change.Save.PairKey = models.PairKey(change.Save.FromUserID, change.Save.ToUserID)
		change.Save.UpdatedAt = now
		if current == nil {
			change.Save.CreatedAt = now
			if err := tx.Create(change.Save).Error; err != nil {
				return nil, err
			}
		} else if err := tx.Save(change.Save).Error; err != nil {
			return nil, err
		}
		result = change.Save
	default:
		result = current
	}

	if len(change.Friends) > 0 {
		if err := tx.Create(&change.Friends).Error; err != nil {
			return nil, err
		}
	}
	return result, nil
}

// ListIncomingRequests returns pending requests addressed to userID with the sender joined.
func (s *Service) ListIncomingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	var requests []models.FriendRequest
	err := s.DB.WithContext(ctx).
		Preload("FromUser").
		Where("to_user_id = ? AND status = ?", userID, models.StatusPending).
		Order("created_at asc").
		Find(&requests).Error
	return requests, translate(err)
}

// ListOutgoingRequests returns pending requests sent by userID with the recipient joined.
func (s *Service) ListOutgoingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	var requests []models.FriendRequest
	err := s.DB.WithContext(ctx).
		Preload("ToUser").
		Where("from_user_id = ? AND status = ?", userID, models.StatusPending).
		Order("created_at asc").
		Find(&requests).Error
	return requests, translate(err)
}

func (s *Service) ListFriends(ctx context.Context, userID string) ([]models.Friend, error) {
	var friends []models.Friend
	err := s.DB.WithContext(ctx).
		Preload("Friend").
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&friends).Error
	return friends, translate(err)
}

func (s *Service) AreFriends(ctx context.Context, userID, friendID string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).
		Model(&models.Friend{}).
		Where("user_id = ? AND friend_id = ?", userID, friendID).
		Count(&count).Error
	if err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}
