package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/chatgateway-backend/internal/platform/ctxutil"
)

func TestAttachTraceContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	var seen ctxutil.TraceData
	r.GET("/x", func(c *gin.Context) {
		seen, _ = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(headerRequestID, "req-123")
	req.Header.Set(headerTraceID, "trace-abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if seen.RequestID != "req-123" || seen.TraceID != "trace-abc" {
		t.Fatalf("unexpected trace data: %+v", seen)
	}
	if got := w.Header().Get(headerRequestID); got != "req-123" {
		t.Fatalf("expected echoed request id, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(headerRequestID, strings.Repeat("a", maxInboundIDLen+1))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if len(seen.RequestID) != 36 {
		t.Fatalf("expected a minted uuid for an oversized id, got %q", seen.RequestID)
	}
	if seen.TraceID != seen.RequestID {
		t.Fatalf("expected trace id to fall back to request id, got %q", seen.TraceID)
	}
}

func TestInboundID(t *testing.T) {
	cases := map[string]string{
		"  abc-123 ":  "abc-123",
		"has space":   "",
		"tab\tinside": "",
		"":            "",
		"ünicode":     "",
	}
	for in, want := range cases {
		if got := inboundID(in); got != want {
			t.Fatalf("inboundID(%q) = %q, want %q", in, got, want)
		}
	}
}
