package models

import (
	"time"
)

// Conversation turn roles.
const (
	TurnRoleIncoming  = "incoming"  // message from the interlocutor
	TurnRoleGenerated = "generated" // AI reply sent back
)

// TelegramConversation is one turn of a private conversation handled by
// auto-reply. Turns per (user, peer) are capped at ConversationHistoryCap;
// the listener trims the oldest rows after appending each new pair.
type TelegramConversation struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    uint      `json:"user_id" gorm:"not null;index:idx_conv_user_peer"`
	PeerID    string    `json:"peer_id" gorm:"size:64;not null;index:idx_conv_user_peer"`
	Role      string    `json:"role" gorm:"type:varchar(16);not null;check:role IN ('incoming','generated')"`
	Content   string    `json:"content" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// ConversationHistoryCap bounds turns retained per (user, peer) pair.
const ConversationHistoryCap = 40

// TableName specifies the table name for TelegramConversation
func (TelegramConversation) TableName() string {
	return "telegram_conversations"
}
