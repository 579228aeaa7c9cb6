package chat

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/chatgateway-backend/internal/domain/chat"
	"github.com/yungbote/chatgateway-backend/internal/platform/dbctx"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
)

type ThreadRepo interface {
	Create(dbc dbctx.Context, row *chat.Thread) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*chat.Thread, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*chat.Thread, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*chat.Thread, error)
	NextSeq(dbc dbctx.Context, id uuid.UUID, model string) (int64, error)
	UpdateTitle(dbc dbctx.Context, id uuid.UUID, title string) error
}

type threadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewThreadRepo(db *gorm.DB, log *logger.Logger) ThreadRepo {
	return &threadRepo{db: db, log: log.With("repo", "ThreadRepo")}
}

func (r *threadRepo) Create(dbc dbctx.Context, row *chat.Thread) error {
	if row == nil || row.ID == uuid.Nil || row.UserID == uuid.Nil {
		return fmt.Errorf("thread requires id and user_id")
	}
	return dbc.DB(r.db).Create(row).Error
}

// GetByID returns (nil, nil) when the thread does not exist.
func (r *threadRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*chat.Thread, error) {
	var out chat.Thread
	err := dbc.DB(r.db).Where("id = ?", id).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// LockByID is GetByID under a row lock. It must run inside a transaction.
func (r *threadRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*chat.Thread, error) {
	if dbc.Tx == nil {
		return nil, fmt.Errorf("LockByID requires dbc.Tx")
	}
	var out chat.Thread
	err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *threadRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*chat.Thread, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	var out []*chat.Thread
	if err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Order("id").
		Limit(limit).
		Offset(offset).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// NextSeq reserves the next turn sequence number, bumps updated_at and
// records the model used by the latest turn. Callers hold the row lock.
func (r *threadRepo) NextSeq(dbc dbctx.Context, id uuid.UUID, model string) (int64, error) {
	res := dbc.DB(r.db).
		Model(&chat.Thread{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"next_seq":   gorm.Expr("next_seq + 1"),
			"model":      model,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	var seq int64
	if err := dbc.DB(r.db).
		Model(&chat.Thread{}).
		Where("id = ?", id).
		Select("next_seq").
		Scan(&seq).Error; err != nil {
		return 0, err
	}
	return seq, nil
}

func (r *threadRepo) UpdateTitle(dbc dbctx.Context, id uuid.UUID, title string) error {
	res := dbc.DB(r.db).
		Model(&chat.Thread{}).
		Where("id = ?", id).
		UpdateColumn("title", title)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
