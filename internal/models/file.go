package models

import (
	"time"

	"gorm.io/gorm"
)

// File ingestion statuses.
const (
	FileStatusProcessing = "processing"
	FileStatusReady      = "ready"
	FileStatusFailed     = "failed"
)

// File represents an uploaded document feeding the AI assistant.
type File struct {
	ID           uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID       uint   `json:"user_id" gorm:"not null;index"`
	FileID       string `json:"file_id" gorm:"uniqueIndex;size:36;not null"` // uuid shared with the AI service
	OriginalName string `json:"original_name" gorm:"size:255;not null"`
	StoragePath  string `json:"-" gorm:"size:512;not null"`
	MimeType     string `json:"mime_type" gorm:"size:100;not null"`
	Size         int64  `json:"size" gorm:"not null"`
	Status       string `json:"status" gorm:"type:varchar(20);default:'processing';check:status IN ('processing','ready','failed')"`
	ChunksCount  int    `json:"chunks_count" gorm:"default:0"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationship; rows go with their user
	User User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for File
func (File) TableName() string {
	return "files"
}
