package models

import (
	"time"
)

// ChatMessage is one turn of the dashboard chat assistant. This history
// is separate from telegram_conversations, which only the auto-reply
// listener writes.
type ChatMessage struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    uint      `json:"user_id" gorm:"not null;index:idx_chat_user_created"`
	Role      string    `json:"role" gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content   string    `json:"content" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index:idx_chat_user_created"`

	// Relationship; rows go with their user
	User User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for ChatMessage
func (ChatMessage) TableName() string {
	return "chat_messages"
}
