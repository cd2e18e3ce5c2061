package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusAccepted RequestStatus = "accepted"
	StatusRejected RequestStatus = "rejected"
)

// FriendRequest is keyed by the unordered pair of users: at most one row exists per
// pair, and direction (From/To) is metadata that a revived request may overwrite.
type FriendRequest struct {
	ID         string        `gorm:"primaryKey;size:64" json:"id"`
	PairKey    string        `gorm:"uniqueIndex;not null" json:"-"`
	FromUserID string        `gorm:"size:64;not null;index" json:"fromUserId"`
	ToUserID   string        `gorm:"size:64;not null;index" json:"toUserId"`
	Status     RequestStatus `gorm:"size:16;not null" json:"status"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`

	FromUser *User `gorm:"foreignKey:FromUserID" json:"fromUser,omitempty"`
	ToUser   *User `gorm:"foreignKey:ToUserID" json:"toUser,omitempty"`
}

func (r *FriendRequest) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}

// Counterpart returns the other user of the request relative to userID.
func (r *FriendRequest) Counterpart(userID string) string {
	if r.FromUserID == userID {
		return r.ToUserID
	}
	return r.FromUserID
}

// Friend is one directed half of a friendship. Accepting a request writes both halves.
type Friend struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex:idx_user_friend" json:"userId"`
	FriendID  string    `gorm:"size:64;not null;uniqueIndex:idx_user_friend" json:"friendId"`
	CreatedAt time.Time `json:"createdAt"`

	Friend *User `gorm:"foreignKey:FriendID" json:"friend,omitempty"`
}

func (f *Friend) BeforeCreate(tx *gorm.DB) (err error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return
}

// FriendshipRows returns both directed rows for the pair {a, b}.
func FriendshipRows(a, b string) []Friend {
	return []Friend{
		{UserID: a, FriendID: b},
		{UserID: b, FriendID: a},
	}
}
