package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a direct two-participant thread. PairKey is the canonical
// unordered pair of its participants; its unique index is what prevents two
// conversations for the same pair.
type Conversation struct {
	ID           string                    `gorm:"primaryKey;size:64" json:"id"`
	PairKey      string                    `gorm:"uniqueIndex;not null" json:"-"`
	CreatedAt    time.Time                 `json:"createdAt"`
	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

type ConversationParticipant struct {
	ID             string    `gorm:"primaryKey;size:64" json:"id"`
	ConversationID string    `gorm:"size:64;not null;uniqueIndex:idx_conversation_user" json:"conversationId"`
	UserID         string    `gorm:"size:64;not null;uniqueIndex:idx_conversation_user;index" json:"userId"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (p *ConversationParticipant) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return
}

// PairKey returns the order-independent key of the pair {a, b}.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}
