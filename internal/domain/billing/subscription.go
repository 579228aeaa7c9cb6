package billing

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionRecord links a user to an external subscription. Whether it is
// active is only known by asking the payment gateway.
type SubscriptionRecord struct {
	ID                     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID                 uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	ExternalSubscriptionID string    `gorm:"column:external_subscription_id;not null;uniqueIndex" json:"subscription_id"`
	CreatedAt              time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt              time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (SubscriptionRecord) TableName() string { return "subscriptions" }
