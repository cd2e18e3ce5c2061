package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is immutable once persisted. Content is opaque to the server; clients may
// carry ciphertext in it. Public room messages use the room name as ConversationID.
type Message struct {
	ID             string    `gorm:"primaryKey;size:64" json:"id"`
	ConversationID string    `gorm:"size:64;not null;index:idx_conversation_created" json:"conversationId"`
	SenderID       string    `gorm:"size:64;not null" json:"senderId"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `gorm:"index:idx_conversation_created" json:"createdAt"`
	Sender         *User     `gorm:"foreignKey:SenderID" json:"user,omitempty"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}
