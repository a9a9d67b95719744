package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a user account
type User struct {
	ID           uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Username     string `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Email        string `json:"email" gorm:"uniqueIndex;size:100;not null"`
	PasswordHash string `json:"-" gorm:"size:255;not null"` // "-" means don't include in JSON
	Role         string `json:"role" gorm:"type:varchar(20);default:'user';check:role IN ('admin','user')"`
	IsActive     bool   `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	TelegramSession *TelegramSession `json:"telegram_session,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Files           []File           `json:"files,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	ChatMessages    []ChatMessage    `json:"chat_messages,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// UserLogin represents login request
type UserLogin struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// UserRegister represents registration request
type UserRegister struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}
