// Package titles names threads from their first exchange.
package titles

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/yungbote/chatgateway-backend/internal/inference/engine"
	"github.com/yungbote/chatgateway-backend/internal/inference/registry"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
	"github.com/yungbote/chatgateway-backend/internal/services/deferred"
	"github.com/yungbote/chatgateway-backend/internal/services/recorder"
)

// MaxTitleRunes matches the web client's truncation.
const MaxTitleRunes = 30

type Models interface {
	Resolve(modelID string) (registry.ModelDescriptor, error)
	CheapestFree(v registry.Vendor) registry.ModelDescriptor
	Default() registry.ModelDescriptor
	Handle(modelID string) (registry.Handle, error)
}

type Summarizer interface {
	// Summarize checks ownership and schedules title generation. The title
	// itself is written later; failures there are only logged.
	Summarize(ctx context.Context, userID, threadID uuid.UUID) error
}

type summarizer struct {
	log      *logger.Logger
	models   Models
	recorder recorder.Recorder
	deferred deferred.Runner
}

func New(baseLog *logger.Logger, models Models, rec recorder.Recorder, runner deferred.Runner) Summarizer {
	return &summarizer{
		log:      baseLog.With("service", "TitleSummarizer"),
		models:   models,
		recorder: rec,
		deferred: runner,
	}
}

func (s *summarizer) Summarize(ctx context.Context, userID, threadID uuid.UUID) error {
	th, first, err := s.recorder.FirstTurn(ctx, userID, threadID)
	if err != nil {
		return err
	}
	threadModel := th.Model

	return s.deferred.Submit("summarize_title", func(ctx context.Context) error {
		h, err := s.pick(threadModel)
		if err != nil {
			return err
		}
		system, user := promptTitle(first.UserMessage, first.AssistantMessage)
		out, err := h.Engine.GenerateText(ctx, h.Descriptor.ID, []engine.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		}, engine.GenerateOptions{Temperature: 0.2, MaxTokens: 32})
		if err != nil {
			return fmt.Errorf("generate title with %s: %w", h.Descriptor.ID, err)
		}
		title := CleanTitle(out)
		if title == "" {
			s.log.Warn("model returned an empty title", "chat_id", threadID, "model", h.Descriptor.ID)
			return nil
		}
		return s.recorder.UpdateTitle(ctx, threadID, title)
	})
}

// pick prefers the cheapest free model of the thread's vendor and falls
// back to the default model when that vendor has no engine.
func (s *summarizer) pick(threadModel string) (registry.Handle, error) {
	candidate := s.models.Default()
	if d, err := s.models.Resolve(threadModel); err == nil {
		candidate = s.models.CheapestFree(d.Vendor)
	}
	h, err := s.models.Handle(candidate.ID)
	if err == nil {
		return h, nil
	}
	return s.models.Handle(s.models.Default().ID)
}

func promptTitle(userMessage, assistantMessage string) (system string, user string) {
	system = `You write short titles for conversations.
Reply with the title only: at most six words, no quotes, no trailing punctuation.`
	user = "User:\n" + userMessage + "\n\nAssistant:\n" + assistantMessage + "\n\nTitle:"
	return system, user
}

// CleanTitle strips quoting and a "Title:" prefix, collapses whitespace and
// truncates to MaxTitleRunes followed by "...".
func CleanTitle(raw string) string {
	t := strings.TrimSpace(raw)
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[:i]
	}
	const quotes = "\"'`*"
	t = strings.Trim(t, quotes)
	if strings.HasPrefix(strings.ToLower(t), "title:") {
		t = t[len("title:"):]
	}
	t = strings.Trim(strings.TrimSpace(t), quotes)
	t = strings.Join(strings.Fields(t), " ")
	if utf8.RuneCountInString(t) <= MaxTitleRunes {
		return t
	}
	r := []rune(t)
	return strings.TrimSpace(string(r[:MaxTitleRunes])) + "..."
}
