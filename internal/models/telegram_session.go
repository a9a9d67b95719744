package models

import (
	"time"

	"gorm.io/gorm"
)

// Telegram session statuses. The handshake walks pending -> awaiting_code
// -> [awaiting_password] -> active; disconnect moves active -> disconnected.
const (
	SessionStatusPending          = "pending"
	SessionStatusAwaitingCode     = "awaiting_code"
	SessionStatusAwaitingPassword = "awaiting_password"
	SessionStatusActive           = "active"
	SessionStatusDisconnected     = "disconnected"
)

// TelegramSession represents a user's Telegram login state. One row per
// user; credentials are the user's own API ID and hash from my.telegram.org.
type TelegramSession struct {
	ID     uint `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID uint `json:"user_id" gorm:"uniqueIndex;not null"`

	APIID   int    `json:"api_id" gorm:"not null"`
	APIHash string `json:"-" gorm:"size:255;not null"`
	Phone   string `json:"phone" gorm:"size:20"`

	Status string `json:"status" gorm:"type:varchar(20);default:'pending';check:status IN ('pending','awaiting_code','awaiting_password','active','disconnected')"`

	// Serialized form of the live connection, set while active. Kept on
	// disconnect so a later reconnect flow can reuse it.
	SessionToken string `json:"-" gorm:"type:text"`

	// Correlates a sent login code with its verify call. Cleared once
	// consumed or whenever the flow restarts.
	PendingCodeHash string `json:"-" gorm:"size:255"`

	AutoReplyEnabled bool `json:"auto_reply_enabled" gorm:"default:false"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationship; rows go with their user
	User User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for TelegramSession
func (TelegramSession) TableName() string {
	return "telegram_sessions"
}
