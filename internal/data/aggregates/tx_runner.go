package aggregates

import (
	"context"
	"time"

	domainagg "github.com/yungbote/chatgateway-backend/internal/domain/aggregates"
	"github.com/yungbote/chatgateway-backend/internal/platform/dbctx"
	"gorm.io/gorm"
)

// TxRunner provides a shared transaction boundary for multi-row writes.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type RunnerOption func(*gormTxRunner)

// WithHooks reports every ExecuteWrite through h.
func WithHooks(h Hooks) RunnerOption {
	return func(r *gormTxRunner) {
		if h != nil {
			r.hooks = h
		}
	}
}

type gormTxRunner struct {
	db    *gorm.DB
	hooks Hooks
}

// NewGormTxRunner returns a transaction runner backed by GORM transactions.
func NewGormTxRunner(db *gorm.DB, opts ...RunnerOption) TxRunner {
	r := &gormTxRunner{db: db, hooks: noopHooks{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "aggregate.tx", "transaction runner has nil db", nil)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}

func (r *gormTxRunner) writeHooks() Hooks { return r.hooks }

// ExecuteWrite runs fn in a transaction and maps any failure to an aggregate error.
func ExecuteWrite(ctx context.Context, runner TxRunner, op string, fn func(dbc dbctx.Context) error) error {
	start := time.Now()
	err := MapError(op, runner.InTx(ctx, fn))
	if hr, ok := runner.(interface{ writeHooks() Hooks }); ok {
		observeWrite(hr.writeHooks(), op, err, time.Since(start))
	}
	return err
}
