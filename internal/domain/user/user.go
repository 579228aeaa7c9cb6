package user

import (
	"time"

	"github.com/google/uuid"
)

// User is created on first Google sign-in and refreshed on every login.
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	GoogleSub   string    `gorm:"column:google_sub;not null;uniqueIndex" json:"-"`
	Email       string    `gorm:"column:email;not null;index" json:"email"`
	DisplayName string    `gorm:"column:display_name;not null;default:''" json:"display_name"`
	AvatarURL   string    `gorm:"column:avatar_url;not null;default:''" json:"avatar_url"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string { return "users" }
