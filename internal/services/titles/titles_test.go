package titles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chatgateway-backend/internal/data/aggregates"
	chatrepo "github.com/yungbote/chatgateway-backend/internal/data/repos/chat"
	"github.com/yungbote/chatgateway-backend/internal/data/repos/testutil"
	"github.com/yungbote/chatgateway-backend/internal/inference/engine"
	"github.com/yungbote/chatgateway-backend/internal/inference/engine/mock"
	"github.com/yungbote/chatgateway-backend/internal/inference/registry"
	"github.com/yungbote/chatgateway-backend/internal/services/deferred"
	"github.com/yungbote/chatgateway-backend/internal/services/recorder"
)

type fixture struct {
	svc       Summarizer
	rec       recorder.Recorder
	anthropic *mock.Engine
	openai    *mock.Engine
}

func newFixture(t *testing.T, engines map[registry.Vendor]engine.Engine) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)

	f := &fixture{anthropic: mock.New(), openai: mock.New()}
	f.anthropic.Fragments = []string{"\"Title: Borrowing in Rust\"\n"}
	f.openai.Fragments = []string{"Default vendor title"}
	if engines == nil {
		engines = map[registry.Vendor]engine.Engine{
			registry.VendorAnthropic: f.anthropic,
			registry.VendorOpenAI:    f.openai,
		}
	}
	reg, err := registry.New(registry.DefaultCatalog(), "", engines)
	require.NoError(t, err)

	f.rec = recorder.New(log, aggregates.NewGormTxRunner(db), chatrepo.NewThreadRepo(db, log), chatrepo.NewTurnRepo(db, log))
	f.svc = New(log, reg, f.rec, deferred.Inline{Timeout: time.Second})
	return f
}

func (f *fixture) thread(t *testing.T, userID uuid.UUID, model string) uuid.UUID {
	t.Helper()
	id, err := f.rec.RecordTurn(context.Background(), recorder.TurnInput{
		UserID:           userID,
		Model:            model,
		UserMessage:      "how does borrowing work?",
		AssistantMessage: "references let you use a value without owning it",
	})
	require.NoError(t, err)
	return id
}

func TestSummarizeUsesCheapestFreeModelOfThreadVendor(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user := uuid.New()
	id := f.thread(t, user, "claude-3-opus-20240229")

	require.NoError(t, f.svc.Summarize(ctx, user, id))

	calls := f.anthropic.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "claude-3-haiku-20240307", calls[0].Model)
	assert.Contains(t, calls[0].Messages[1].Content, "how does borrowing work?")

	th, err := f.rec.GetThread(ctx, user, id)
	require.NoError(t, err)
	assert.Equal(t, "Borrowing in Rust", th.Title)
}

func TestSummarizeFallsBackToDefaultModel(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user := uuid.New()
	id := f.thread(t, user, "mistral-tiny-2312")

	require.NoError(t, f.svc.Summarize(ctx, user, id))

	calls := f.openai.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, registry.DefaultModelID, calls[0].Model)
}

func TestSummarizeRejectsForeignThread(t *testing.T) {
	f := newFixture(t, nil)
	id := f.thread(t, uuid.New(), "gpt-3.5-turbo")

	err := f.svc.Summarize(context.Background(), uuid.New(), id)
	assert.ErrorIs(t, err, recorder.ErrForbidden)
	assert.Empty(t, f.openai.Calls())
}

func TestSummarizeGenerationFailureLeavesTitle(t *testing.T) {
	f := newFixture(t, nil)
	f.openai.Err = errors.New("upstream down")
	ctx := context.Background()
	user := uuid.New()
	id := f.thread(t, user, "gpt-3.5-turbo")

	require.NoError(t, f.svc.Summarize(ctx, user, id))

	th, err := f.rec.GetThread(ctx, user, id)
	require.NoError(t, err)
	assert.Empty(t, th.Title)
}

func TestCleanTitle(t *testing.T) {
	cases := map[string]string{
		"  Rust   borrowing  ":                         "Rust borrowing",
		"Title: \"Quoted\"":                             "Quoted",
		"first line\nsecond line":                       "first line",
		"An extremely long title that keeps on going":   "An extremely long title that k...",
		"":                                              "",
		"ünïcödé characters are counted as runes here!": "ünïcödé characters are counted...",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanTitle(in), "input %q", in)
	}
}
