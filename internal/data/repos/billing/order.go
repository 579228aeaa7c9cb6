package billing

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/chatgateway-backend/internal/domain/billing"
	"github.com/yungbote/chatgateway-backend/internal/platform/dbctx"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
)

type OrderRepo interface {
	Create(dbc dbctx.Context, row *billing.Order) error
	GetByID(dbc dbctx.Context, orderID string) (*billing.Order, error)
}

type orderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOrderRepo(db *gorm.DB, log *logger.Logger) OrderRepo {
	return &orderRepo{db: db, log: log.With("repo", "OrderRepo")}
}

func (r *orderRepo) Create(dbc dbctx.Context, row *billing.Order) error {
	if row == nil || row.OrderID == "" {
		return fmt.Errorf("order requires order_id")
	}
	return dbc.DB(r.db).Create(row).Error
}

// GetByID returns (nil, nil) when no local order exists.
func (r *orderRepo) GetByID(dbc dbctx.Context, orderID string) (*billing.Order, error) {
	var out billing.Order
	err := dbc.DB(r.db).Where("order_id = ?", orderID).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
