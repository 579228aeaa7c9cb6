package testutil

import (
	"testing"
	"time"
)

func TestHooksRecorder_CapturesSignals(t *testing.T) {
	h := &HooksRecorder{}
	h.ObserveOperation("recorder.record_turn", "success", 10*time.Millisecond)
	h.ObserveOperation("payments.credit", "conflict", time.Millisecond)
	h.IncConflict("payments.credit")
	h.IncRetry("recorder.record_turn")

	got := h.Statuses()
	if len(got) != 2 || got[0] != "recorder.record_turn:success" || got[1] != "payments.credit:conflict" {
		t.Fatalf("unexpected statuses: %v", got)
	}
	if len(h.Conflicts) != 1 || h.Conflicts[0] != "payments.credit" {
		t.Fatalf("unexpected conflicts: %+v", h.Conflicts)
	}
	if len(h.Retries) != 1 || h.Retries[0] != "recorder.record_turn" {
		t.Fatalf("unexpected retries: %+v", h.Retries)
	}
}
