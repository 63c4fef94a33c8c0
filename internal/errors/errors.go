package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Code is a typed error code surfaced to the presentation layer.
type Code string

// Engine error codes.
const (
	ErrConfigInvalid      Code = "CONFIG_INVALID"
	ErrProfileStore       Code = "PROFILE_STORE"
	ErrProfileNotFound    Code = "PROFILE_NOT_FOUND"
	ErrProfileDuplicate   Code = "PROFILE_DUPLICATE"
	ErrNotConnected       Code = "NOT_CONNECTED"
	ErrUnreachable        Code = "UNREACHABLE"
	ErrUnauthorized       Code = "UNAUTHORIZED"
	ErrForbidden          Code = "FORBIDDEN"
	ErrNotFound           Code = "NOT_FOUND"
	ErrAlreadyExists      Code = "ALREADY_EXISTS"
	ErrConflict           Code = "CONFLICT"
	ErrTimeout            Code = "TIMEOUT"
	ErrInvalidInput       Code = "INVALID_INPUT"
	ErrMetricsUnavailable Code = "METRICS_UNAVAILABLE"
	ErrParse              Code = "PARSE"
	ErrInternal           Code = "INTERNAL"
)

// defaultTTL is the auto-expiry duration for errors not re-reported.
const defaultTTL = 5 * time.Minute

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock uses the system clock.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// Error is a typed engine error with code, component, and optional wrapped error.
// Message is safe to show to a user as-is.
type Error struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Component string `json:"component"`
	Timestamp int64  `json:"timestamp"`
	Err       error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error stamped with the current time.
func New(code Code, component, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Component: component,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Wrap builds an Error around err. The message embeds err's text so the
// caller can render it directly.
func Wrap(err error, code Code, component, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	return &Error{
		Code:      code,
		Message:   msg,
		Component: component,
		Timestamp: time.Now().UnixMilli(),
		Err:       err,
	}
}

// CodeOf returns the Code carried by err, or ErrInternal when err is not an *Error.
// It returns "" for a nil error.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ErrInternal
}

// entry wraps an Error with its last-reported time for expiry tracking.
type entry struct {
	err        Error
	lastReport time.Time
}

// ErrorCollector is a thread-safe store for active engine errors.
// Errors are keyed by Code+Component and auto-expire after 5 minutes
// if not re-reported.
type ErrorCollector struct {
	mu      sync.Mutex
	clock   Clock
	entries map[string]entry // key = string(Code) + "|" + Component
}

// NewErrorCollector creates an ErrorCollector with the given clock.
func NewErrorCollector(clock Clock) *ErrorCollector {
	return &ErrorCollector{
		clock:   clock,
		entries: make(map[string]entry),
	}
}

func key(code Code, component string) string {
	return string(code) + "|" + component
}

// Report stores or refreshes an error. The dedup key is Code+Component.
func (ec *ErrorCollector) Report(err Error) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	ec.entries[key(err.Code, err.Component)] = entry{
		err:        err,
		lastReport: ec.clock.Now(),
	}
}

// Resolve drops an error once the component recovers.
func (ec *ErrorCollector) Resolve(code Code, component string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	delete(ec.entries, key(code, component))
}

// ResolveComponent drops every error reported by component.
func (ec *ErrorCollector) ResolveComponent(component string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	for k, e := range ec.entries {
		if e.err.Component == component {
			delete(ec.entries, k)
		}
	}
}

// GetActiveErrors returns all errors that have been reported within the TTL window.
func (ec *ErrorCollector) GetActiveErrors() []Error {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	now := ec.clock.Now()
	result := make([]Error, 0, len(ec.entries))
	for k, e := range ec.entries {
		if now.Sub(e.lastReport) > defaultTTL {
			delete(ec.entries, k)
			continue
		}
		result = append(result, e.err)
	}
	return result
}

// GetActiveErrorCodes returns a sorted, deduplicated list of active error codes.
func (ec *ErrorCollector) GetActiveErrorCodes() []string {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	now := ec.clock.Now()
	seen := make(map[Code]struct{})
	codes := make([]string, 0)
	for k, e := range ec.entries {
		if now.Sub(e.lastReport) > defaultTTL {
			delete(ec.entries, k)
			continue
		}
		if _, ok := seen[e.err.Code]; !ok {
			seen[e.err.Code] = struct{}{}
			codes = append(codes, string(e.err.Code))
		}
	}
	sort.Strings(codes)
	return codes
}

// Clear removes all tracked errors.
func (ec *ErrorCollector) Clear() {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	ec.entries = make(map[string]entry)
}
