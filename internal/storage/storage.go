// Package storage is the transactional store behind the coordination core. It runs
// on gorm with PostgreSQL in production; the find-or-create and read-modify-write paths
// rely on unique indexes on the unordered pair keys plus row locks, so concurrent
// callers acting on the same pair cannot both create conflicting rows.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"friendchat/backend/internal/models"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert lost a race on a unique index.
	ErrDuplicate = errors.New("duplicate key")
)

type Storage interface {
	SaveUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	FindOrCreateConversation(ctx context.Context, userA, userB string) (*models.Conversation, bool, error)
	GetConversationParticipants(ctx context.Context, conversationID string) ([]string, error)

	UpdateFriendRequestByPair(ctx context.Context, userA, userB string, fn RequestMutation) (*models.FriendRequest, error)
	UpdateFriendRequestByID(ctx context.Context, requestID string, fn RequestMutation) (*models.FriendRequest, error)
	ListIncomingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error)
	ListOutgoingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error)
	ListFriends(ctx context.Context, userID string) ([]models.Friend, error)
	AreFriends(ctx context.Context, userID, friendID string) (bool, error)

	SaveMessage(ctx context.Context, msg *models.Message) error
	GetMessages(ctx context.Context, conversationID string) ([]models.Message, error)
}

type Service struct {
	DB *gorm.DB

	clockMu sync.Mutex
	last    time.Time
	now     func() time.Time
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{
		DB:  db,
		now: time.Now,
	}
}

// Migrate creates or updates every table the core owns.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
		&models.FriendRequest{},
		&models.Friend{},
	)
}

// nextTimestamp returns a strictly increasing UTC timestamp at microsecond precision,
// the resolution PostgreSQL keeps.
func (s *Service) nextTimestamp() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()

	ts := s.now().UTC().Truncate(time.Microsecond)
	if !ts.After(s.last) {
		ts = s.last.Add(time.Microsecond)
	}
	s.last = ts
	return ts
}

// translate maps gorm errors onto the package sentinels. It relies on
// gorm.Config.TranslateError being set so that drivers report gorm.ErrDuplicatedKey.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// SaveUser зберігає користувача в PostgreSQL
func (s *Service) SaveUser(ctx context.Context, user *models.User) error {
	return translate(s.DB.WithContext(ctx).Save(user).Error)
}

func (s *Service) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", userID).Take(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).Take(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}
