// Package orchestrator drives one chat request from admission through
// generation to its terminal side effects.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/chatgateway-backend/internal/domain/chat"
	"github.com/yungbote/chatgateway-backend/internal/inference/engine"
	"github.com/yungbote/chatgateway-backend/internal/inference/registry"
	"github.com/yungbote/chatgateway-backend/internal/inference/tokenizer"
	"github.com/yungbote/chatgateway-backend/internal/observability"
	"github.com/yungbote/chatgateway-backend/internal/platform/ctxutil"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
	"github.com/yungbote/chatgateway-backend/internal/services/deferred"
	"github.com/yungbote/chatgateway-backend/internal/services/quota"
	"github.com/yungbote/chatgateway-backend/internal/services/recorder"
)

const DefaultTemperature = 0.8

var (
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrUnsupportedVendor = errors.New("unsupported vendor")
	ErrUpstreamFailure   = errors.New("upstream generation failed")
	ErrEmptyInput        = errors.New("user input is empty")
)

type State string

const (
	StateAdmitted       State = "admitted"
	StateGenerating     State = "generating"
	StateCompleted      State = "completed"
	StateAborted        State = "aborted"
	StateUpstreamFailed State = "upstream_failed"
)

// HistoryTurn is one prior exchange supplied by the caller.
type HistoryTurn struct {
	UserMessage      string
	AssistantMessage string
}

type Request struct {
	UserID    uuid.UUID
	UserInput string
	History   []HistoryTurn
	// Model defaults to the registry default when empty.
	Model string
	// Temperature defaults to DefaultTemperature when nil.
	Temperature *float64
	ThreadID    *uuid.UUID
	Regenerate  bool
}

// Outcome describes how a stream ended. Text is exactly the concatenation of
// the fragments produced, in order.
type Outcome struct {
	State     State
	ThreadID  uuid.UUID
	Model     string
	Text      string
	Fragments int
	Usage     chat.UsageStats
	// Err is the upstream error for streams that failed after producing
	// output. Those are not returned as errors from Run.
	Err error
}

type ModelSource interface {
	Handle(modelID string) (registry.Handle, error)
	Default() registry.ModelDescriptor
}

type UsageCounter interface {
	Supports(v registry.Vendor) bool
	ComputeUsage(modelID, inputText, outputText string) (chat.UsageStats, error)
}

type Deps struct {
	Log      *logger.Logger
	Models   ModelSource
	Usage    UsageCounter
	Gate     quota.Gate
	Recorder recorder.Recorder
	Deferred deferred.Runner
	// Limiter is optional.
	Limiter StreamLimiter
	// PersistTimeout bounds terminal persistence on the completed path.
	PersistTimeout time.Duration
	Metrics        *observability.Metrics
}

type Orchestrator struct {
	log            *logger.Logger
	models         ModelSource
	usage          UsageCounter
	gate           quota.Gate
	recorder       recorder.Recorder
	deferred       deferred.Runner
	limiter        StreamLimiter
	persistTimeout time.Duration
	metrics        *observability.Metrics
	tracer         trace.Tracer
}

func New(d Deps) *Orchestrator {
	timeout := d.PersistTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Orchestrator{
		log:            d.Log.With("service", "Orchestrator"),
		models:         d.Models,
		usage:          d.Usage,
		gate:           d.Gate,
		recorder:       d.Recorder,
		deferred:       d.Deferred,
		limiter:        d.Limiter,
		persistTimeout: timeout,
		metrics:        d.Metrics,
		tracer:         otel.Tracer("chatgateway/orchestrator"),
	}
}

// admitted is the state carried from admission into generation.
type admitted struct {
	req       Request
	handle    registry.Handle
	admission quota.Admission
	threadID  uuid.UUID
	messages  []engine.Message
	temp      float64
}

// Run executes one request. It returns an error only when the request fails
// before any fragment reached the sink; once streaming has started every
// outcome is reported through Outcome and the returned error is nil.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink Sink) (Outcome, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.run")
	defer span.End()

	a, release, err := o.admit(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Outcome{}, err
	}
	defer release()

	started := time.Now()
	o.metrics.StreamOpened()

	span.SetAttributes(
		attribute.String("chat.model", a.handle.Descriptor.ID),
		attribute.String("chat.vendor", string(a.handle.Descriptor.Vendor)),
		attribute.String("chat.thread_id", a.threadID.String()),
	)

	out, err := o.generate(ctx, a, sink)
	o.metrics.ObserveStream(out.Model, string(out.State), time.Since(started), out.Usage.InputTokens, out.Usage.OutputTokens, out.Usage.Cost)
	span.SetAttributes(
		attribute.String("chat.state", string(out.State)),
		attribute.Int("chat.fragments", out.Fragments),
		attribute.Int("chat.input_tokens", out.Usage.InputTokens),
		attribute.Int("chat.output_tokens", out.Usage.OutputTokens),
	)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	} else if out.Err != nil {
		span.RecordError(out.Err)
	}
	return out, err
}

func (o *Orchestrator) admit(ctx context.Context, req Request) (admitted, func(), error) {
	noop := func() {}
	if strings.TrimSpace(req.UserInput) == "" {
		return admitted{}, noop, ErrEmptyInput
	}

	modelID := strings.TrimSpace(req.Model)
	if modelID == "" {
		modelID = o.models.Default().ID
	}
	h, err := o.models.Handle(modelID)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return admitted{}, noop, fmt.Errorf("%w: %s", ErrUnsupportedModel, modelID)
	case errors.Is(err, registry.ErrNoEngine):
		return admitted{}, noop, fmt.Errorf("%w: %s", ErrUnsupportedVendor, modelID)
	case err != nil:
		return admitted{}, noop, err
	}
	if !o.usage.Supports(h.Descriptor.Vendor) {
		return admitted{}, noop, fmt.Errorf("%w: %s", ErrUnsupportedVendor, h.Descriptor.Vendor)
	}

	ref, err := o.recorder.ResolveThread(ctx, req.UserID, req.ThreadID)
	if err != nil {
		return admitted{}, noop, err
	}

	adm, err := o.gate.CheckAndAdmit(ctx, req.UserID, modelID)
	if err != nil {
		return admitted{}, noop, err
	}

	release := noop
	if o.limiter != nil {
		r, err := o.limiter.Acquire(ctx, req.UserID)
		switch {
		case errors.Is(err, ErrTooManyStreams):
			return admitted{}, noop, err
		case err != nil:
			// The ledger still bounds spend; run without a slot.
			o.log.Warn("stream limiter unavailable", "user_id", req.UserID, "error", err)
		default:
			release = r
		}
	}

	temp := DefaultTemperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}

	return admitted{
		req:       req,
		handle:    h,
		admission: adm,
		threadID:  ref.ID,
		messages:  BuildContext(req.History, req.UserInput),
		temp:      temp,
	}, release, nil
}

// BuildContext orders prior turns chronologically as alternating user and
// assistant messages, followed by the new user message.
func BuildContext(history []HistoryTurn, userInput string) []engine.Message {
	msgs := make([]engine.Message, 0, 2*len(history)+1)
	for _, t := range history {
		msgs = append(msgs,
			engine.Message{Role: "user", Content: t.UserMessage},
			engine.Message{Role: "assistant", Content: t.AssistantMessage},
		)
	}
	return append(msgs, engine.Message{Role: "user", Content: userInput})
}

func (o *Orchestrator) generate(ctx context.Context, a admitted, sink Sink) (Outcome, error) {
	out := Outcome{
		State:    StateGenerating,
		ThreadID: a.threadID,
		Model:    a.handle.Descriptor.ID,
	}

	var acc strings.Builder
	_, streamErr := a.handle.Engine.StreamText(ctx, a.handle.Descriptor.ID, a.messages, engine.GenerateOptions{Temperature: a.temp}, func(delta string) error {
		acc.WriteString(delta)
		out.Fragments++
		return sink.Send(ctx, Event{Kind: EventKindStream, Data: delta})
	})
	out.Text = acc.String()

	log := o.log.With("user_id", a.req.UserID, "chat_id", a.threadID, "model", out.Model, "request_id", ctxutil.RequestID(ctx))

	switch {
	case streamErr == nil:
		out.State = StateCompleted
		o.complete(ctx, a, &out, sink, log)
		return out, nil

	case engine.IsSinkError(streamErr) || ctx.Err() != nil:
		out.State = StateAborted
		log.Info("client disconnected mid-stream", "fragments", out.Fragments)
		o.abort(a, &out, log)
		return out, nil

	case out.Fragments == 0:
		out.State = StateUpstreamFailed
		log.Warn("upstream failed before first fragment", "error", streamErr)
		return out, fmt.Errorf("%w: %v", ErrUpstreamFailure, streamErr)

	default:
		// Partial output was delivered and already cost tokens.
		out.State = StateUpstreamFailed
		out.Err = streamErr
		log.Warn("upstream failed mid-stream", "fragments", out.Fragments, "error", streamErr)
		o.abort(a, &out, log)
		return out, nil
	}
}

// complete persists and commits on a context detached from the request so a
// disconnect racing the final event cannot cancel the write, then emits the
// terminal event.
func (o *Orchestrator) complete(ctx context.Context, a admitted, out *Outcome, sink Sink, log *logger.Logger) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.persistTimeout)
	defer cancel()

	usage, err := o.finalize(pctx, a, out.Text)
	if err != nil {
		log.Error("persist completed turn failed", "error", err)
	}
	out.Usage = usage

	final := Event{Kind: EventKindStream, Data: "", IsFinal: true, ChatID: a.threadID.String()}
	if err := sink.Send(ctx, final); err != nil {
		log.Info("final event not delivered", "error", err)
	}
}

// abort hands terminal side effects to the deferred runner. Zero-fragment
// streams produced nothing billable and record nothing.
func (o *Orchestrator) abort(a admitted, out *Outcome, log *logger.Logger) {
	if out.Fragments == 0 {
		return
	}
	text := out.Text
	if err := o.deferred.Submit("persist_partial_turn", func(ctx context.Context) error {
		_, err := o.finalize(ctx, a, text)
		return err
	}); err != nil {
		log.Warn("partial turn dropped", "error", err)
	}
}

// finalize meters the exact streamed text, records the turn and consumes a
// free generation when the admission was quota-based. A failed history
// write does not skip the commit; every failure is returned joined.
func (o *Orchestrator) finalize(ctx context.Context, a admitted, text string) (chat.UsageStats, error) {
	var errs []error
	usage, err := o.usage.ComputeUsage(a.handle.Descriptor.ID, tokenizer.SerializeContext(a.messages), text)
	if err != nil {
		errs = append(errs, fmt.Errorf("compute usage: %w", err))
	} else if _, err := o.recorder.RecordTurn(ctx, recorder.TurnInput{
		ThreadID:         a.threadID,
		UserID:           a.req.UserID,
		Model:            a.handle.Descriptor.ID,
		UserMessage:      a.req.UserInput,
		AssistantMessage: text,
		IsRegeneration:   a.req.Regenerate,
		Usage:            usage,
	}); err != nil {
		errs = append(errs, fmt.Errorf("record turn: %w", err))
	}
	if a.admission.ConsumesQuota() {
		if err := o.gate.Commit(ctx, a.req.UserID); err != nil {
			errs = append(errs, fmt.Errorf("commit quota: %w", err))
		}
	}
	return usage, errors.Join(errs...)
}
