package chat

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/chatgateway-backend/internal/data/repos/testutil"
	"github.com/yungbote/chatgateway-backend/internal/domain/chat"
	"github.com/yungbote/chatgateway-backend/internal/platform/dbctx"
)

func TestThreadRepoLifecycle(t *testing.T) {
	db := testutil.DB(t)
	repo := NewThreadRepo(db, testutil.Logger(t))
	dbc := dbctx.Of(context.Background())

	owner := uuid.New()
	id := uuid.New()
	require.NoError(t, repo.Create(dbc, &chat.Thread{ID: id, UserID: owner, Model: "gpt-3.5-turbo"}))

	got, err := repo.GetByID(dbc, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, owner, got.UserID)

	missing, err := repo.GetByID(dbc, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	seq, err := repo.NextSeq(dbc, id, "gpt-4")
	require.NoError(t, err)
	assert.EqualValues(t, 1, seq)
	seq, err = repo.NextSeq(dbc, id, "gpt-4")
	require.NoError(t, err)
	assert.EqualValues(t, 2, seq)

	got, err = repo.GetByID(dbc, id)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", got.Model)

	require.NoError(t, repo.UpdateTitle(dbc, id, "Trip planning"))
	got, _ = repo.GetByID(dbc, id)
	assert.Equal(t, "Trip planning", got.Title)

	assert.ErrorIs(t, repo.UpdateTitle(dbc, uuid.New(), "x"), gorm.ErrRecordNotFound)
}

func TestThreadRepoListByUserPaginates(t *testing.T) {
	db := testutil.DB(t)
	repo := NewThreadRepo(db, testutil.Logger(t))
	dbc := dbctx.Of(context.Background())

	owner := uuid.New()
	for i := 0; i < 12; i++ {
		require.NoError(t, repo.Create(dbc, &chat.Thread{ID: uuid.New(), UserID: owner, Model: "m"}))
	}
	require.NoError(t, repo.Create(dbc, &chat.Thread{ID: uuid.New(), UserID: uuid.New(), Model: "m"}))

	page1, err := repo.ListByUser(dbc, owner, 10, 0)
	require.NoError(t, err)
	assert.Len(t, page1, 10)

	page2, err := repo.ListByUser(dbc, owner, 10, 10)
	require.NoError(t, err)
	assert.Len(t, page2, 2)
}

func TestTurnRepoOrdersBySeq(t *testing.T) {
	db := testutil.DB(t)
	threads := NewThreadRepo(db, testutil.Logger(t))
	turns := NewTurnRepo(db, testutil.Logger(t))
	dbc := dbctx.Of(context.Background())

	owner := uuid.New()
	threadID := uuid.New()
	require.NoError(t, threads.Create(dbc, &chat.Thread{ID: threadID, UserID: owner, Model: "m"}))

	for i, msg := range []string{"first", "second", "third"} {
		require.NoError(t, turns.Create(dbc, &chat.Turn{
			ThreadID:         threadID,
			UserID:           owner,
			Seq:              int64(i + 1),
			UserMessage:      msg,
			AssistantMessage: "re: " + msg,
			Model:            "m",
			Usage:            chat.UsageStats{Cost: decimal.Zero},
		}))
	}

	got, err := turns.ListByThread(dbc, threadID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].UserMessage)
	assert.Equal(t, "third", got[2].UserMessage)

	first, err := turns.FirstByThread(dbc, threadID)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "first", first.UserMessage)

	none, err := turns.FirstByThread(dbc, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, none)

	dup := &chat.Turn{ThreadID: threadID, UserID: owner, Seq: 1, Model: "m", Usage: chat.UsageStats{Cost: decimal.Zero}}
	assert.Error(t, turns.Create(dbc, dup))
}
