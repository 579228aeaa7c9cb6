package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/chatgateway-backend/internal/data/aggregates"
	"github.com/yungbote/chatgateway-backend/internal/platform/dbctx"
)

// InjectedTxRunner stands in for a database transaction and fails on demand.
// The callback runs with a nil Tx, so repos fall back to their own handle.
type InjectedTxRunner struct {
	mu sync.Mutex

	FailBegin  error
	FailCommit error

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.BeginCalls++
	failBegin, failCommit := r.FailBegin, r.FailCommit
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}
	if fn != nil {
		if err := fn(dbctx.Context{Ctx: ctx}); err != nil {
			r.bump(&r.RollbackCalls)
			return err
		}
	}
	if failCommit != nil {
		r.bump(&r.RollbackCalls)
		return failCommit
	}
	r.bump(&r.CommitCalls)
	return nil
}

func (r *InjectedTxRunner) bump(n *int) {
	r.mu.Lock()
	*n++
	r.mu.Unlock()
}
