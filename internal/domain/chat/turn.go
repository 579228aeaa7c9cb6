package chat

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UsageStats is the metered cost of one turn. Cost is in USD.
type UsageStats struct {
	InputTokens  int             `gorm:"column:input_tokens;not null;default:0" json:"input_tokens"`
	OutputTokens int             `gorm:"column:output_tokens;not null;default:0" json:"output_tokens"`
	Cost         decimal.Decimal `gorm:"column:cost;type:numeric(24,12);not null" json:"cost"`
}

// Turn is one user/assistant exchange. Turns are append-only.
type Turn struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ThreadID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_chat_history_thread_seq,priority:1" json:"chat_id"`
	Seq      int64     `gorm:"column:seq;not null;uniqueIndex:ux_chat_history_thread_seq,priority:2" json:"seq"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	UserMessage      string `gorm:"column:user_message;type:text;not null" json:"user_message"`
	AssistantMessage string `gorm:"column:ai_message;type:text;not null" json:"ai_message"`
	Model            string `gorm:"column:model;not null" json:"model"`
	IsRegeneration   bool   `gorm:"column:is_regeneration;not null;default:false" json:"is_regeneration"`

	Usage UsageStats `gorm:"embedded" json:"usage"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Turn) TableName() string { return "chat_history" }
