package billing

import (
	"time"

	"github.com/google/uuid"
)

// QuotaLedger holds a user's remaining free generations. Remaining never
// goes below zero.
type QuotaLedger struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Remaining int       `gorm:"column:remaining;not null;check:chk_user_generations_remaining,remaining >= 0" json:"remaining"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (QuotaLedger) TableName() string { return "user_generations" }
