// Package errs provides structured error types and helpers for algohost services.
package errs

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

// Code identifies a failure category surfaced by the host.
type Code string

const (
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
	// CodeNotFound indicates that no registered algorithm matched the requested name.
	CodeNotFound Code = "not_found"
	// CodeNotInitialized indicates that no live instance exists for the id.
	CodeNotInitialized Code = "not_initialized"
	// CodeAlreadyInitialized indicates that a live instance already holds the id.
	CodeAlreadyInitialized Code = "already_initialized"
	// CodeAmbiguous indicates that a name resolved to more than one registered type.
	CodeAmbiguous Code = "ambiguous"
	// CodeHookFailed indicates that an algorithm hook returned an error or panicked.
	CodeHookFailed Code = "hook_failed"
	// CodeInvalidConfig indicates an unparsable or rejected configuration payload.
	CodeInvalidConfig Code = "invalid_config"
	// CodeTransport indicates an RPC transport failure towards the platform.
	CodeTransport Code = "transport"
	// CodePaused indicates the instance refused the call because it is paused.
	CodePaused Code = "paused"
	// CodeRateLimited indicates that the request exceeded the instance throttle.
	CodeRateLimited Code = "rate_limited"
	// CodeConflict indicates a conflicting registration or mutation.
	CodeConflict Code = "conflict"
	// CodeUnavailable indicates the service is temporarily unavailable.
	CodeUnavailable Code = "unavailable"
)

// E captures structured error information produced across the host.
type E struct {
	Code      Code
	Op        string
	Instance  string
	Algorithm string
	Message   string
	Metadata  map[string]string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the operation and error code.
func New(op string, code Code, opts ...Option) *E {
	e := &E{
		Code: code,
		Op:   strings.TrimSpace(op),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithInstance records the instance id the failure belongs to.
func WithInstance(id string) Option {
	trimmed := strings.TrimSpace(id)
	return func(e *E) {
		e.Instance = trimmed
	}
}

// WithAlgorithm records the logical algorithm name involved.
func WithAlgorithm(name string) Option {
	trimmed := strings.TrimSpace(name)
	return func(e *E) {
		e.Algorithm = trimmed
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

// WithField appends a single metadata key/value pair.
func WithField(key, value string) Option {
	return func(e *E) {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			return
		}
		if e.Metadata == nil {
			e.Metadata = make(map[string]string, 1)
		}
		e.Metadata[trimmedKey] = strings.TrimSpace(value)
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	if e.Op != "" {
		parts = append(parts, "op="+e.Op)
	}

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.Instance != "" {
		parts = append(parts, "instance="+strconv.Quote(e.Instance))
	}
	if e.Algorithm != "" {
		parts = append(parts, "algorithm="+strconv.Quote(e.Algorithm))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if len(e.Metadata) > 0 {
		keys := make([]string, 0, len(e.Metadata))
		for k := range e.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+strconv.Quote(e.Metadata[k]))
		}
		parts = append(parts, "meta="+strings.Join(pairs, ","))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// Reason renders the short, caller-facing explanation carried in RPC results.
func (e *E) Reason() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		if e.cause != nil {
			return e.Message + ": " + e.cause.Error()
		}
		return e.Message
	}
	if e.cause != nil {
		return e.cause.Error()
	}
	return string(e.Code)
}

// CodeOf extracts the code of the first envelope in err's chain.
func CodeOf(err error) Code {
	var e *E
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries an envelope with the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Reason renders err for an RPC result, preferring the envelope reason.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var e *E
	if errors.As(err, &e) {
		return e.Reason()
	}
	return err.Error()
}

// NotInitialized returns the standard failure for an id with no live instance.
func NotInitialized(op, instanceID string) *E {
	return New(op, CodeNotInitialized, WithInstance(instanceID), WithMessage("algorithm not initialized"))
}
