package chat

import (
	"time"

	"github.com/google/uuid"
)

// Thread is a conversation owned by a single user. Turns are appended to it;
// it is never deleted here.
type Thread struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"chat_id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index:idx_chats_user_updated,priority:1" json:"user_id"`

	// Model is the generation model used by the most recent turn.
	Model string `gorm:"column:model;not null" json:"model"`
	Title string `gorm:"column:title;not null;default:''" json:"title"`

	// NextSeq is the sequence number handed to the next appended turn.
	NextSeq int64 `gorm:"column:next_seq;not null;default:0" json:"-"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime;index:idx_chats_user_updated,priority:2,sort:desc" json:"updated_at"`
}

func (Thread) TableName() string { return "chats" }
