package billing

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/chatgateway-backend/internal/domain/billing"
	"github.com/yungbote/chatgateway-backend/internal/platform/dbctx"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
)

type PaymentRepo interface {
	// Create inserts the record; a duplicate payment_id surfaces as a
	// unique violation from the store.
	Create(dbc dbctx.Context, row *billing.PaymentRecord) error
	Exists(dbc dbctx.Context, paymentID string) (bool, error)
	GetForUser(dbc dbctx.Context, userID uuid.UUID, paymentID string) (*billing.PaymentRecord, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*billing.PaymentRecord, error)
}

type paymentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPaymentRepo(db *gorm.DB, log *logger.Logger) PaymentRepo {
	return &paymentRepo{db: db, log: log.With("repo", "PaymentRepo")}
}

func (r *paymentRepo) Create(dbc dbctx.Context, row *billing.PaymentRecord) error {
	if row == nil || row.PaymentID == "" || row.OrderID == "" {
		return fmt.Errorf("payment requires order_id and payment_id")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return dbc.DB(r.db).Create(row).Error
}

func (r *paymentRepo) Exists(dbc dbctx.Context, paymentID string) (bool, error) {
	var n int64
	if err := dbc.DB(r.db).
		Model(&billing.PaymentRecord{}).
		Where("payment_id = ?", paymentID).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetForUser returns (nil, nil) when the payment is unknown or belongs to
// another user.
func (r *paymentRepo) GetForUser(dbc dbctx.Context, userID uuid.UUID, paymentID string) (*billing.PaymentRecord, error) {
	var out billing.PaymentRecord
	err := dbc.DB(r.db).
		Where("payment_id = ? AND user_id = ?", paymentID, userID).
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *paymentRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*billing.PaymentRecord, error) {
	var out []*billing.PaymentRecord
	if err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
