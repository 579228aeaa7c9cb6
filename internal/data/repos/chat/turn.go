package chat

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/chatgateway-backend/internal/domain/chat"
	"github.com/yungbote/chatgateway-backend/internal/platform/dbctx"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
)

type TurnRepo interface {
	Create(dbc dbctx.Context, row *chat.Turn) error
	ListByThread(dbc dbctx.Context, threadID uuid.UUID) ([]*chat.Turn, error)
	// FirstByThread returns the earliest turn, or nil when the thread has none.
	FirstByThread(dbc dbctx.Context, threadID uuid.UUID) (*chat.Turn, error)
}

type turnRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTurnRepo(db *gorm.DB, log *logger.Logger) TurnRepo {
	return &turnRepo{db: db, log: log.With("repo", "TurnRepo")}
}

func (r *turnRepo) Create(dbc dbctx.Context, row *chat.Turn) error {
	if row == nil || row.ThreadID == uuid.Nil {
		return fmt.Errorf("turn requires thread_id")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return dbc.DB(r.db).Create(row).Error
}

// ListByThread returns turns in the order they were appended.
func (r *turnRepo) ListByThread(dbc dbctx.Context, threadID uuid.UUID) ([]*chat.Turn, error) {
	var out []*chat.Turn
	if err := dbc.DB(r.db).
		Where("thread_id = ?", threadID).
		Order("seq ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *turnRepo) FirstByThread(dbc dbctx.Context, threadID uuid.UUID) (*chat.Turn, error) {
	var out []*chat.Turn
	if err := dbc.DB(r.db).
		Where("thread_id = ?", threadID).
		Order("seq ASC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}
