package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chatgateway-backend/internal/data/repos/testutil"
	"github.com/yungbote/chatgateway-backend/internal/domain/billing"
	"github.com/yungbote/chatgateway-backend/internal/platform/dbctx"
)

func TestLedgerGetOrCreateSeedsOnce(t *testing.T) {
	db := testutil.DB(t)
	repo := NewLedgerRepo(db, testutil.Logger(t))
	dbc := dbctx.Of(context.Background())
	userID := uuid.New()

	l, err := repo.GetOrCreate(dbc, userID, 20)
	require.NoError(t, err)
	assert.Equal(t, 20, l.Remaining)

	l, err = repo.GetOrCreate(dbc, userID, 99)
	require.NoError(t, err)
	assert.Equal(t, 20, l.Remaining, "existing ledger must not be reseeded")
}

func TestLedgerDecrementNeverGoesNegative(t *testing.T) {
	db := testutil.DB(t)
	repo := NewLedgerRepo(db, testutil.Logger(t))
	dbc := dbctx.Of(context.Background())
	userID := uuid.New()

	_, err := repo.GetOrCreate(dbc, userID, 1)
	require.NoError(t, err)

	ok, err := repo.Decrement(dbc, userID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Decrement(dbc, userID)
	require.NoError(t, err)
	assert.False(t, ok)

	l, err := repo.GetOrCreate(dbc, userID, 20)
	require.NoError(t, err)
	assert.Equal(t, 0, l.Remaining)
}

func TestLedgerConcurrentDecrementsAreAtomic(t *testing.T) {
	db := testutil.DB(t)
	repo := NewLedgerRepo(db, testutil.Logger(t))
	ctx := context.Background()
	userID := uuid.New()

	_, err := repo.GetOrCreate(dbctx.Of(ctx), userID, 5)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Decrement(dbctx.Of(ctx), userID)
			if err != nil {
				t.Errorf("decrement: %v", err)
				return
			}
			if ok {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, applied)
	l, err := repo.GetOrCreate(dbctx.Of(ctx), userID, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, l.Remaining)
}

func TestLedgerIncrementCreatesMissingRow(t *testing.T) {
	db := testutil.DB(t)
	repo := NewLedgerRepo(db, testutil.Logger(t))
	dbc := dbctx.Of(context.Background())

	balance, err := repo.Increment(dbc, uuid.New(), 50, 20)
	require.NoError(t, err)
	assert.Equal(t, 70, balance)
}

func TestLedgerWritesStampUpdatedAtInStore(t *testing.T) {
	db := testutil.DB(t)
	repo := NewLedgerRepo(db, testutil.Logger(t))
	dbc := dbctx.Of(context.Background())
	userID := uuid.New()

	_, err := repo.GetOrCreate(dbc, userID, 3)
	require.NoError(t, err)

	stale := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	backdate := func() {
		require.NoError(t, db.Model(&billing.QuotaLedger{}).
			Where("user_id = ?", userID).
			UpdateColumn("updated_at", stale).Error)
	}

	backdate()
	ok, err := repo.Decrement(dbc, userID)
	require.NoError(t, err)
	require.True(t, ok)
	l, err := repo.GetOrCreate(dbc, userID, 3)
	require.NoError(t, err)
	assert.True(t, l.UpdatedAt.After(stale), "decrement must refresh updated_at, got %v", l.UpdatedAt)

	backdate()
	_, err = repo.Increment(dbc, userID, 5, 3)
	require.NoError(t, err)
	l, err = repo.GetOrCreate(dbc, userID, 3)
	require.NoError(t, err)
	assert.True(t, l.UpdatedAt.After(stale), "increment must refresh updated_at, got %v", l.UpdatedAt)
}
