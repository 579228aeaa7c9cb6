package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/chatgateway-backend/internal/domain/chat"
	"github.com/yungbote/chatgateway-backend/internal/http/response"
	"github.com/yungbote/chatgateway-backend/internal/platform/ctxutil"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
	"github.com/yungbote/chatgateway-backend/internal/services/orchestrator"
	"github.com/yungbote/chatgateway-backend/internal/services/recorder"
	"github.com/yungbote/chatgateway-backend/internal/services/titles"
)

type ChatRunner interface {
	Run(ctx context.Context, req orchestrator.Request, sink orchestrator.Sink) (orchestrator.Outcome, error)
}

type ChatHandler struct {
	log      *logger.Logger
	runner   ChatRunner
	recorder recorder.Recorder
	titles   titles.Summarizer
}

func NewChatHandler(log *logger.Logger, runner ChatRunner, rec recorder.Recorder, summarizer titles.Summarizer) *ChatHandler {
	return &ChatHandler{
		log:      log.With("handler", "ChatHandler"),
		runner:   runner,
		recorder: rec,
		titles:   summarizer,
	}
}

type historyItem struct {
	UserMessage string `json:"user_message"`
	AIMessage   string `json:"ai_message"`
}

type chatRequest struct {
	UserInput   string        `json:"user_input" binding:"required"`
	ChatHistory []historyItem `json:"chat_history"`
	ChatModel   string        `json:"chat_model"`
	Temperature *float64      `json:"temperature" binding:"omitempty,gte=0,lte=2"`
	ChatID      string        `json:"chat_id" binding:"omitempty,uuid"`
	Regenerate  bool          `json:"regenerate"`
}

func (r chatRequest) toRequest(userID uuid.UUID) orchestrator.Request {
	req := orchestrator.Request{
		UserID:      userID,
		UserInput:   r.UserInput,
		Model:       r.ChatModel,
		Temperature: r.Temperature,
		Regenerate:  r.Regenerate,
	}
	for _, h := range r.ChatHistory {
		req.History = append(req.History, orchestrator.HistoryTurn{
			UserMessage:      h.UserMessage,
			AssistantMessage: h.AIMessage,
		})
	}
	if id, err := uuid.Parse(r.ChatID); err == nil {
		req.ThreadID = &id
	}
	return req
}

// Chat runs a request to completion and returns the whole reply.
func (h *ChatHandler) Chat(c *gin.Context) {
	var body chatRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondAPIError(c, badRequest(err))
		return
	}
	ctx := c.Request.Context()

	var collected orchestrator.Collector
	out, err := h.runner.Run(ctx, body.toRequest(ctxutil.UserID(ctx)), &collected)
	if err != nil {
		response.RespondAPIError(c, toAPIError(err))
		return
	}
	if out.State != orchestrator.StateCompleted {
		h.log.Warn("chat did not complete", "state", out.State, "error", out.Err)
		response.RespondAPIError(c, toAPIError(orchestrator.ErrUpstreamFailure))
		return
	}
	response.RespondOK(c, gin.H{
		"response": out.Text,
		"chat_id":  out.ThreadID.String(),
	})
}

// ChatStream forwards fragments as server-sent events as they arrive.
func (h *ChatHandler) ChatStream(c *gin.Context) {
	var body chatRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondAPIError(c, badRequest(err))
		return
	}
	ctx := c.Request.Context()

	sink := &sseSink{c: c}
	out, err := h.runner.Run(ctx, body.toRequest(ctxutil.UserID(ctx)), sink)
	if err != nil {
		if !sink.started {
			response.RespondAPIError(c, toAPIError(err))
			return
		}
		h.log.Warn("stream failed after headers were sent", "error", err)
		return
	}
	if out.State == orchestrator.StateUpstreamFailed {
		// The client sees the stream end without a final event.
		h.log.Warn("stream closed after upstream failure", "chat_id", out.ThreadID, "fragments", out.Fragments)
	}
}

type titleRequest struct {
	ChatID string `json:"chat_id" binding:"required,uuid"`
}

// ChatTitle schedules title generation and returns immediately.
func (h *ChatHandler) ChatTitle(c *gin.Context) {
	var body titleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondAPIError(c, badRequest(err))
		return
	}
	threadID := uuid.MustParse(body.ChatID)
	ctx := c.Request.Context()
	if err := h.titles.Summarize(ctx, ctxutil.UserID(ctx), threadID); err != nil {
		response.RespondAPIError(c, toAPIError(err))
		return
	}
	response.RespondAccepted(c, gin.H{"chat_id": threadID.String(), "status": "accepted"})
}

type threadView struct {
	ChatID    string    `json:"chat_id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toThreadView(t *chat.Thread) threadView {
	return threadView{ChatID: t.ID.String(), Title: t.Title, Model: t.Model, UpdatedAt: t.UpdatedAt}
}

// ListThreads returns one page of the caller's threads, newest first.
func (h *ChatHandler) ListThreads(c *gin.Context) {
	page := 1
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.RespondAPIError(c, badRequest(errInvalidPage))
			return
		}
		page = n
	}
	ctx := c.Request.Context()
	threads, err := h.recorder.ListThreads(ctx, ctxutil.UserID(ctx), page)
	if err != nil {
		response.RespondAPIError(c, toAPIError(err))
		return
	}
	out := make([]threadView, 0, len(threads))
	for _, t := range threads {
		out = append(out, toThreadView(t))
	}
	response.RespondOK(c, out)
}

// GetThread returns a thread the caller owns with all of its turns in order.
func (h *ChatHandler) GetThread(c *gin.Context) {
	threadID, err := uuid.Parse(c.Param("chat_id"))
	if err != nil {
		response.RespondAPIError(c, badRequest(err))
		return
	}
	ctx := c.Request.Context()
	userID := ctxutil.UserID(ctx)

	th, err := h.recorder.GetThread(ctx, userID, threadID)
	if err != nil {
		response.RespondAPIError(c, toAPIError(err))
		return
	}
	turns, err := h.recorder.ListTurns(ctx, userID, threadID)
	if err != nil {
		response.RespondAPIError(c, toAPIError(err))
		return
	}
	if turns == nil {
		turns = []*chat.Turn{}
	}
	response.RespondOK(c, gin.H{
		"chat":  toThreadView(th),
		"turns": turns,
	})
}
