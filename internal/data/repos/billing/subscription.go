package billing

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/chatgateway-backend/internal/domain/billing"
	"github.com/yungbote/chatgateway-backend/internal/platform/dbctx"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
)

type SubscriptionRepo interface {
	Upsert(dbc dbctx.Context, row *billing.SubscriptionRecord) error
	// ListByUser returns the user's subscriptions, newest first.
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*billing.SubscriptionRecord, error)
}

type subscriptionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubscriptionRepo(db *gorm.DB, log *logger.Logger) SubscriptionRepo {
	return &subscriptionRepo{db: db, log: log.With("repo", "SubscriptionRepo")}
}

func (r *subscriptionRepo) Upsert(dbc dbctx.Context, row *billing.SubscriptionRecord) error {
	if row == nil || row.UserID == uuid.Nil || row.ExternalSubscriptionID == "" {
		return fmt.Errorf("subscription requires user_id and external id")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_subscription_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
		}).
		Create(row).Error
}

func (r *subscriptionRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*billing.SubscriptionRecord, error) {
	var out []*billing.SubscriptionRecord
	if err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
