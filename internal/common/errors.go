// Package common defines the error taxonomy shared by the offline engines,
// the facade and the CLI. Callers should use errors.Is against the sentinel
// values (ErrAlreadyCheckedOut, ...) or KindOf to branch on the category.
package common

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for display and control flow.
type Kind string

const (
	KindAlreadyCheckedOut   Kind = "already_checked_out"
	KindNoActiveCheckout    Kind = "no_active_checkout"
	KindOperationInProgress Kind = "operation_in_progress"
	KindOfflineRequired     Kind = "offline_required"
	KindSyncConflict        Kind = "sync_conflict"
	KindPartialFailure      Kind = "partial_failure"
	KindStorageFailure      Kind = "storage_failure"
	KindNetworkFailure      Kind = "network_failure"
	KindNotFound            Kind = "not_found"
	KindInvalid             Kind = "invalid"
)

var (
	ErrAlreadyCheckedOut   = &Error{Kind: KindAlreadyCheckedOut, Msg: "records are already checked out, check in first"}
	ErrNoActiveCheckout    = &Error{Kind: KindNoActiveCheckout, Msg: "no active checkout"}
	ErrOperationInProgress = &Error{Kind: KindOperationInProgress, Msg: "operation already in progress"}
	ErrOfflineRequired     = &Error{Kind: KindOfflineRequired, Msg: "network connection required"}
	ErrSyncConflict        = &Error{Kind: KindSyncConflict, Msg: "sync conflict"}
	ErrPartialFailure      = &Error{Kind: KindPartialFailure, Msg: "some changes failed to sync"}
	ErrStorageFailure      = &Error{Kind: KindStorageFailure, Msg: "local storage failure"}
	ErrNetworkFailure      = &Error{Kind: KindNetworkFailure, Msg: "network failure"}
	ErrNotFound            = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrInvalid             = &Error{Kind: KindInvalid, Msg: "invalid request"}
)

// Error is a categorized error. Op names the failing operation
// ("checkout", "syncqueue.retry", ...), Err is the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	b.WriteString(msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match when target is an *Error of the same Kind, so
// errors.Is(err, ErrNoActiveCheckout) works for any wrapped instance.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// E builds an *Error of the given kind wrapping err.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error of the given kind with a formatted message.
func Errorf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message returns a single human-readable line for err, falling back to
// fallback when err carries no text.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Msg != "" && e.Err == nil {
		return e.Msg
	}
	if s := err.Error(); s != "" {
		return s
	}
	return fallback
}

// DisplayErrors caps a list of error lines for display, summarizing the rest.
func DisplayErrors(errs []string, limit int) []string {
	if limit <= 0 || len(errs) <= limit {
		out := make([]string, len(errs))
		copy(out, errs)
		return out
	}
	out := make([]string, 0, limit+1)
	out = append(out, errs[:limit]...)
	out = append(out, fmt.Sprintf("...and %d more", len(errs)-limit))
	return out
}
