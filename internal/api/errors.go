package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrRequestFailed marks a call that never produced an HTTP response:
// connection failures, timeouts, cancelled contexts and an open circuit.
var ErrRequestFailed = errors.New("request failed")

// Error is returned when the server answers with a non-2xx status.
// Body holds the decoded JSON payload, or the raw text when the payload
// is not JSON.
type Error struct {
	Method string
	Path   string
	Status int
	Body   any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: status=%d body=%s", e.Method, e.Path, e.Status, e.bodyString())
}

// Message extracts a human readable message from the error body, looking at
// the usual "detail", "error" and "message" keys.
func (e *Error) Message() string {
	if m, ok := e.Body.(map[string]any); ok {
		for _, key := range []string{"detail", "error", "message"} {
			if v, ok := m[key].(string); ok && v != "" {
				return v
			}
		}
	}
	if s, ok := e.Body.(string); ok && s != "" {
		return s
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

func (e *Error) bodyString() string {
	switch b := e.Body.(type) {
	case nil:
		return ""
	case string:
		return b
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return fmt.Sprint(b)
		}
		return string(raw)
	}
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not a
// server rejection.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	return errors.Is(err, ErrRequestFailed)
}

// UserMessage renders err the way it is shown to a user in a notification.
func UserMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message()
	}
	if IsTransport(err) {
		return "Request failed, check your connection"
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func transportError(method, path string, cause error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, path, cause)
}

func parseBody(raw []byte) any {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil
	}
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
		return decoded
	}
	return trimmed
}
