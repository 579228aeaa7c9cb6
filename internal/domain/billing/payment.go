package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// PaymentRecord marks an external payment as credited. PaymentID is unique,
// so a payment can be credited at most once.
type PaymentRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID   string    `gorm:"column:order_id;not null;index" json:"order_id"`
	PaymentID string    `gorm:"column:payment_id;not null;uniqueIndex:ux_payments_payment_id" json:"payment_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Plan      string    `gorm:"column:plan;not null" json:"plan"`
	Granted   int       `gorm:"column:granted;not null;default:0" json:"granted"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (PaymentRecord) TableName() string { return "payments" }

// Order is the local copy of an order created at the gateway.
type Order struct {
	OrderID   string         `gorm:"column:order_id;primaryKey" json:"order_id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Plan      string         `gorm:"column:plan;not null" json:"plan"`
	Amount    int64          `gorm:"column:amount;not null" json:"amount"`
	Currency  string         `gorm:"column:currency;not null" json:"currency"`
	Raw       datatypes.JSON `gorm:"column:raw" json:"-"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }
