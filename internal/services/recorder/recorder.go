// Package recorder persists conversation threads and their turns.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/chatgateway-backend/internal/data/aggregates"
	chatrepo "github.com/yungbote/chatgateway-backend/internal/data/repos/chat"
	domainagg "github.com/yungbote/chatgateway-backend/internal/domain/aggregates"
	"github.com/yungbote/chatgateway-backend/internal/domain/chat"
	"github.com/yungbote/chatgateway-backend/internal/platform/dbctx"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
)

var (
	ErrForbidden      = errors.New("thread belongs to another user")
	ErrThreadNotFound = errors.New("thread not found")
)

const ThreadsPerPage = 10

// TurnInput is one finished exchange. A zero ThreadID starts a new thread.
type TurnInput struct {
	ThreadID         uuid.UUID
	UserID           uuid.UUID
	Model            string
	UserMessage      string
	AssistantMessage string
	IsRegeneration   bool
	Usage            chat.UsageStats
}

// ThreadRef is the result of resolving an optional thread id for a caller.
type ThreadRef struct {
	ID     uuid.UUID
	Exists bool
}

type Recorder interface {
	// ResolveThread mints an id when none is given and otherwise verifies the
	// caller owns the thread. A supplied id that does not exist yet is
	// accepted and will be created on the first RecordTurn.
	ResolveThread(ctx context.Context, userID uuid.UUID, threadID *uuid.UUID) (ThreadRef, error)
	// RecordTurn appends a turn and returns the thread id. Each call appends,
	// so callers invoke it at most once per stream.
	RecordTurn(ctx context.Context, in TurnInput) (uuid.UUID, error)
	UpdateTitle(ctx context.Context, threadID uuid.UUID, title string) error
	GetThread(ctx context.Context, userID, threadID uuid.UUID) (*chat.Thread, error)
	ListThreads(ctx context.Context, userID uuid.UUID, page int) ([]*chat.Thread, error)
	ListTurns(ctx context.Context, userID, threadID uuid.UUID) ([]*chat.Turn, error)
	// FirstTurn returns the opening exchange of a thread the caller owns.
	// A thread without turns reports ErrThreadNotFound.
	FirstTurn(ctx context.Context, userID, threadID uuid.UUID) (*chat.Thread, *chat.Turn, error)
}

type recorder struct {
	log     *logger.Logger
	tx      aggregates.TxRunner
	threads chatrepo.ThreadRepo
	turns   chatrepo.TurnRepo
}

func New(baseLog *logger.Logger, tx aggregates.TxRunner, threads chatrepo.ThreadRepo, turns chatrepo.TurnRepo) Recorder {
	return &recorder{
		log:     baseLog.With("service", "Recorder"),
		tx:      tx,
		threads: threads,
		turns:   turns,
	}
}

func (r *recorder) ResolveThread(ctx context.Context, userID uuid.UUID, threadID *uuid.UUID) (ThreadRef, error) {
	if threadID == nil || *threadID == uuid.Nil {
		return ThreadRef{ID: uuid.New()}, nil
	}
	t, err := r.threads.GetByID(dbctx.Of(ctx), *threadID)
	if err != nil {
		return ThreadRef{}, fmt.Errorf("load thread: %w", err)
	}
	if t == nil {
		return ThreadRef{ID: *threadID}, nil
	}
	if t.UserID != userID {
		return ThreadRef{}, ErrForbidden
	}
	return ThreadRef{ID: t.ID, Exists: true}, nil
}

func (r *recorder) RecordTurn(ctx context.Context, in TurnInput) (uuid.UUID, error) {
	if in.UserID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("record turn: missing user_id")
	}
	threadID := in.ThreadID
	if threadID == uuid.Nil {
		threadID = uuid.New()
	}

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = r.appendTurn(ctx, threadID, in)
		// A concurrent first turn may have created the thread; the retry
		// then finds it and appends under its lock.
		if !domainagg.IsCode(err, domainagg.CodeConflict) {
			break
		}
	}
	if err != nil {
		return uuid.Nil, err
	}
	return threadID, nil
}

func (r *recorder) appendTurn(ctx context.Context, threadID uuid.UUID, in TurnInput) error {
	return aggregates.ExecuteWrite(ctx, r.tx, "recorder.record_turn", func(dbc dbctx.Context) error {
		t, err := r.threads.LockByID(dbc, threadID)
		if err != nil {
			return err
		}
		switch {
		case t == nil:
			if err := r.threads.Create(dbc, &chat.Thread{ID: threadID, UserID: in.UserID, Model: in.Model}); err != nil {
				return err
			}
		case t.UserID != in.UserID:
			return ErrForbidden
		}

		seq, err := r.threads.NextSeq(dbc, threadID, in.Model)
		if err != nil {
			return err
		}
		return r.turns.Create(dbc, &chat.Turn{
			ThreadID:         threadID,
			Seq:              seq,
			UserID:           in.UserID,
			UserMessage:      in.UserMessage,
			AssistantMessage: in.AssistantMessage,
			Model:            in.Model,
			IsRegeneration:   in.IsRegeneration,
			Usage:            in.Usage,
		})
	})
}

func (r *recorder) UpdateTitle(ctx context.Context, threadID uuid.UUID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("update title: empty title")
	}
	if err := r.threads.UpdateTitle(dbctx.Of(ctx), threadID, title); err != nil {
		return aggregates.MapError("recorder.update_title", err)
	}
	return nil
}

func (r *recorder) GetThread(ctx context.Context, userID, threadID uuid.UUID) (*chat.Thread, error) {
	t, err := r.threads.GetByID(dbctx.Of(ctx), threadID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrThreadNotFound
	}
	if t.UserID != userID {
		return nil, ErrForbidden
	}
	return t, nil
}

// ListThreads pages through the caller's threads, most recent first. Pages
// start at 1.
func (r *recorder) ListThreads(ctx context.Context, userID uuid.UUID, page int) ([]*chat.Thread, error) {
	if page < 1 {
		page = 1
	}
	return r.threads.ListByUser(dbctx.Of(ctx), userID, ThreadsPerPage, (page-1)*ThreadsPerPage)
}

func (r *recorder) ListTurns(ctx context.Context, userID, threadID uuid.UUID) ([]*chat.Turn, error) {
	if _, err := r.GetThread(ctx, userID, threadID); err != nil {
		return nil, err
	}
	return r.turns.ListByThread(dbctx.Of(ctx), threadID)
}

func (r *recorder) FirstTurn(ctx context.Context, userID, threadID uuid.UUID) (*chat.Thread, *chat.Turn, error) {
	th, err := r.GetThread(ctx, userID, threadID)
	if err != nil {
		return nil, nil, err
	}
	turn, err := r.turns.FirstByThread(dbctx.Of(ctx), threadID)
	if err != nil {
		return nil, nil, err
	}
	if turn == nil {
		return nil, nil, ErrThreadNotFound
	}
	return th, turn, nil
}
