// Package apierr defines the classified errors shared by every gateway
// component and the helpers used to inspect them at boundaries.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the top-level error category.
type Kind string

const (
	KindInvalidInput      Kind = "invalid_input"
	KindRateLimited       Kind = "rate_limited"
	KindTransport         Kind = "transport_error"
	KindValidation        Kind = "validation_failed"
	KindAllAttemptsFailed Kind = "all_attempts_failed"
	KindCancelled         Kind = "cancelled"
	KindTimeout           Kind = "timeout"
)

// Validation reasons.
const (
	ReasonTooShort      = "tooShort"
	ReasonLowConfidence = "lowConfidence"
	ReasonStale         = "stale"
	ReasonGeneric       = "generic"
	ReasonMalformed     = "malformed"
)

// StatusClientClosed is the non-standard status used when the caller went away.
const StatusClientClosed = 499

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrRateLimited       = &Error{Kind: KindRateLimited}
	ErrTransport         = &Error{Kind: KindTransport}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrAllAttemptsFailed = &Error{Kind: KindAllAttemptsFailed}
	ErrCancelled         = &Error{Kind: KindCancelled}
	ErrTimeout           = &Error{Kind: KindTimeout}
)

// Error is a classified gateway error.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Cause != nil:
		return e.Cause.Error()
	case e.Reason != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same kind and, if the target sets one,
// the same reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

func InvalidInput(format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func RateLimited(route string, capacity int) error {
	return &Error{
		Kind:    KindRateLimited,
		Reason:  "rate_limited",
		Message: fmt.Sprintf("Rate limit exceeded for %s: max %d requests per window", route, capacity),
	}
}

func Transport(endpoint string, cause error) error {
	return &Error{
		Kind:    KindTransport,
		Reason:  "transport",
		Message: fmt.Sprintf("%s: %v", endpoint, cause),
		Cause:   cause,
	}
}

func Validation(reason, format string, args ...any) error {
	return &Error{Kind: KindValidation, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// AllAttemptsFailed wraps the last attempt failure. Its message is the last
// upstream reason so callers see why the final attempt was rejected.
func AllAttemptsFailed(last error) error {
	e := &Error{Kind: KindAllAttemptsFailed, Cause: last, Reason: ReasonOf(last)}
	if last == nil {
		e.Message = "all attempts failed"
	}
	return e
}

func Cancelled(cause error) error {
	return &Error{Kind: KindCancelled, Reason: "cancelled", Message: "request cancelled", Cause: cause}
}

func Timeout(format string, args ...any) error {
	return &Error{Kind: KindTimeout, Reason: "timeout", Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the outermost classified error, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ReasonOf returns the reason of the outermost classified error. Errors
// without a reason report their kind; unclassified errors report "unknown".
func ReasonOf(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		if err == nil {
			return ""
		}
		return "unknown"
	}
	if e.Reason != "" {
		return e.Reason
	}
	return string(e.Kind)
}

// Recoverable reports whether a retry against another endpoint may help.
func Recoverable(err error) bool {
	switch KindOf(err) {
	case KindTransport, KindValidation:
		return true
	}
	return false
}

// HTTPStatus maps an error to the response status of the inbound API.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindCancelled:
		return StatusClientClosed
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
