package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/chatgateway-backend/internal/services/orchestrator"
)

// sseSink frames events as "data: <json>\n\n". Headers are written with the
// first event so that failures before any output can still be answered
// with a JSON error and a proper status.
type sseSink struct {
	c       *gin.Context
	started bool
}

func (s *sseSink) Send(ctx context.Context, ev orchestrator.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w := s.c.Writer
	if !s.started {
		h := w.Header()
		h.Set("Content-Type", "text/event-stream; charset=utf-8")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		s.started = true
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := writeSSE(w, string(payload)); err != nil {
		return err
	}
	w.Flush()
	return nil
}

func writeSSE(w http.ResponseWriter, data string) error {
	for _, line := range strings.Split(data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}
