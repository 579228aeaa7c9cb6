package billing

import (

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/chatgateway-backend/internal/domain/billing"
	"github.com/yungbote/chatgateway-backend/internal/platform/dbctx"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
)

// LedgerRepo owns the per-user generation counter. Every mutation is a
// single conditional UPDATE so concurrent callers never lose a write and the
// counter never goes below zero.
type LedgerRepo interface {
	// GetOrCreate returns the user's ledger, inserting one seeded with
	// allotment if none exists.
	GetOrCreate(dbc dbctx.Context, userID uuid.UUID, allotment int) (*billing.QuotaLedger, error)
	// Decrement subtracts one generation. It reports false, without error,
	// when the balance is already zero or the row does not exist.
	Decrement(dbc dbctx.Context, userID uuid.UUID) (bool, error)
	// Increment adds n generations and returns the new balance.
	Increment(dbc dbctx.Context, userID uuid.UUID, n int, allotment int) (int, error)
}

type ledgerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLedgerRepo(db *gorm.DB, log *logger.Logger) LedgerRepo {
	return &ledgerRepo{db: db, log: log.With("repo", "LedgerRepo")}
}

func (r *ledgerRepo) ensure(dbc dbctx.Context, userID uuid.UUID, allotment int) error {
	if allotment < 0 {
		allotment = 0
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&billing.QuotaLedger{UserID: userID, Remaining: allotment}).Error
}

func (r *ledgerRepo) GetOrCreate(dbc dbctx.Context, userID uuid.UUID, allotment int) (*billing.QuotaLedger, error) {
	if err := r.ensure(dbc, userID, allotment); err != nil {
		return nil, err
	}
	var out billing.QuotaLedger
	if err := dbc.DB(r.db).Where("user_id = ?", userID).Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *ledgerRepo) Decrement(dbc dbctx.Context, userID uuid.UUID) (bool, error) {
	res := dbc.DB(r.db).
		Model(&billing.QuotaLedger{}).
		Where("user_id = ? AND remaining > 0", userID).
		UpdateColumns(map[string]interface{}{
			"remaining":  gorm.Expr("remaining - 1"),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ledgerRepo) Increment(dbc dbctx.Context, userID uuid.UUID, n int, allotment int) (int, error) {
	if err := r.ensure(dbc, userID, allotment); err != nil {
		return 0, err
	}
	if n > 0 {
		if err := dbc.DB(r.db).
			Model(&billing.QuotaLedger{}).
			Where("user_id = ?", userID).
			UpdateColumns(map[string]interface{}{
				"remaining":  gorm.Expr("remaining + ?", n),
				"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
			}).Error; err != nil {
			return 0, err
		}
	}
	var out billing.QuotaLedger
	if err := dbc.DB(r.db).Where("user_id = ?", userID).Take(&out).Error; err != nil {
		return 0, err
	}
	return out.Remaining, nil
}
