package fetchagent

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies a failed request. Every kind except Aborted and
// Validation is derived from an HTTP status.
type Kind string

const (
	KindTimeout             Kind = "Timeout"
	KindBadRequest          Kind = "BadRequest"
	KindUnauthorized        Kind = "Unauthorized"
	KindForbidden           Kind = "Forbidden"
	KindNotFound            Kind = "NotFound"
	KindInternalServerError Kind = "InternalServerError"
	KindUnknown             Kind = "Unknown"
	KindAborted             Kind = "Aborted"
	KindValidation          Kind = "Validation"
)

// StatusTimeout is the status attached to requests that ran out of time.
const StatusTimeout = http.StatusRequestTimeout

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrTimeout             = &Error{Kind: KindTimeout}
	ErrBadRequest          = &Error{Kind: KindBadRequest}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
	ErrForbidden           = &Error{Kind: KindForbidden}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrInternalServerError = &Error{Kind: KindInternalServerError}
	ErrUnknown             = &Error{Kind: KindUnknown}
	ErrAborted             = &Error{Kind: KindAborted}
	ErrValidation          = &Error{Kind: KindValidation}
)

// KindForStatus maps an HTTP status to its error kind.
func KindForStatus(status int) Kind {
	switch status {
	case StatusTimeout:
		return KindTimeout
	case http.StatusBadRequest:
		return KindBadRequest
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusInternalServerError:
		return KindInternalServerError
	default:
		return KindUnknown
	}
}

// Error is the structured failure returned by the transport and the agent.
type Error struct {
	Kind    Kind              `json:"kind"`
	Message string            `json:"message"`
	Status  int               `json:"status"`
	Body    any               `json:"body,omitempty"`
	Headers http.Header       `json:"headers,omitempty"`
	Params  RequestDescriptor `json:"params"`
	// Cause is the low-level failure. Only its text survives serialization.
	Cause        error         `json:"-"`
	CauseMessage string        `json:"cause,omitempty"`
	Attempt      int           `json:"attempt"`
	Timestamp    time.Time     `json:"-"`
	Duration     time.Duration `json:"duration"`
	Cached       bool          `json:"cached"`
}

func newError(kind Kind, status int, message string, params RequestDescriptor, cause error) *Error {
	e := &Error{
		Kind:      kind,
		Message:   message,
		Status:    status,
		Params:    params,
		Cause:     cause,
		Timestamp: time.Now(),
	}
	if cause != nil {
		e.CauseMessage = cause.Error()
	}
	return e
}

// Error implements error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Params.Method != "" {
		msg = fmt.Sprintf("%s [%s %s]", msg, e.Params.Method, e.Params.URL)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	} else if e.CauseMessage != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.CauseMessage)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (after %d repeats)", msg, e.Attempt)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches another *Error of the same kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Clone returns a deep copy; the cause is shared.
func (e *Error) Clone() *Error {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Body = cloneValue(e.Body)
	clone.Headers = e.Headers.Clone()
	clone.Params = e.Params.Clone()
	return &clone
}

func (e *Error) sanitized() *Error {
	clone := e.Clone()
	clone.Cached = false
	clone.Params.Options.PostProcessors = nil
	return clone
}

// DebugInfo renders a multi-line description for diagnostics.
func (e *Error) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Kind: %s\n", e.Kind)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.Status > 0 {
		info += fmt.Sprintf("Status: %d\n", e.Status)
	}
	if e.Params.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Params.Method)
	}
	if e.Params.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.Params.URL)
	}
	if e.Params.TransformedURL != "" && e.Params.TransformedURL != e.Params.URL {
		info += fmt.Sprintf("Transformed URL: %s\n", e.Params.TransformedURL)
	}
	if e.Attempt > 0 {
		info += fmt.Sprintf("Repeats: %d\n", e.Attempt)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cached {
		info += "Cached: true\n"
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	} else if e.CauseMessage != "" {
		info += fmt.Sprintf("Cause: %s\n", e.CauseMessage)
	}
	return info
}

// IsTransient reports whether repeating the request might succeed:
// timeouts, 5xx responses and network failures.
func IsTransient(err error) bool {
	var agentErr *Error
	if !errors.As(err, &agentErr) {
		return false
	}
	switch agentErr.Kind {
	case KindTimeout, KindInternalServerError:
		return true
	case KindUnknown:
		return agentErr.Status == 0 || agentErr.Status >= 500 || agentErr.Status == http.StatusTooManyRequests
	default:
		return false
	}
}

// IsAborted reports whether err was caused by the caller canceling the request.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var agentErr *Error
	if errors.As(err, &agentErr) {
		return agentErr.Status
	}
	return 0
}
