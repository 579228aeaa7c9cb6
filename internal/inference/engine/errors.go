package engine

import (
	"errors"
	"fmt"
)

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "upstream http error"
	}
	if e.Body == "" {
		return fmt.Sprintf("upstream http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("upstream http error: status=%d body=%s", e.StatusCode, e.Body)
}

// StreamError is an error event reported inside an otherwise healthy stream.
type StreamError struct {
	Payload string
}

func (e *StreamError) Error() string {
	return "upstream stream error: " + e.Payload
}

// SinkError marks an error returned by the caller's onDelta callback, so the
// caller can tell its own cancellation apart from an upstream failure.
type SinkError struct {
	Err error
}

func (e *SinkError) Error() string { return "sink: " + e.Err.Error() }
func (e *SinkError) Unwrap() error { return e.Err }

func IsSinkError(err error) bool {
	var se *SinkError
	return errors.As(err, &se)
}
