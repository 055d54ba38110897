// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package errors defines typed errors with categories for user-friendly reporting.
// It provides a structured approach to error handling with machine-readable error kinds
// and human-friendly messages, so that callers can branch on the failure category
// (invalid credentials, expired token, unreachable service) without string matching.
//
// An *E matches another *E under errors.Is when their kinds are equal, which lets
// sentinel values such as ErrInvalidCredentials be used as comparison targets.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// InvalidCredentials indicates the credential service rejected an email/password pair.
	InvalidCredentials Kind = "invalid_credentials"
	// InvalidToken indicates the credential service rejected a stored session token.
	InvalidToken Kind = "invalid_token"
	// StoreUnavailable indicates the persisted token store could not be read or written.
	StoreUnavailable Kind = "store_unavailable"
	// ServiceUnavailable indicates the credential service could not be reached or answered badly.
	ServiceUnavailable Kind = "service_unavailable"
	// Timeout indicates a credential service call exceeded its deadline.
	Timeout Kind = "timeout"
	// Canceled indicates the operation was abandoned before the credential service answered.
	Canceled Kind = "canceled"
	// IllegalTransition indicates a trigger that the session state machine does not accept
	// in its current state.
	IllegalTransition Kind = "illegal_transition"
	// Unknown is reported by KindOf for errors that carry no kind.
	Unknown Kind = "unknown"
)

// Sentinel values for errors.Is comparisons.
var (
	ErrInvalidCredentials = New(InvalidCredentials, "invalid email or password")
	ErrInvalidToken       = New(InvalidToken, "session token is no longer valid")
	ErrStoreUnavailable   = New(StoreUnavailable, "token store unavailable")
	ErrServiceUnavailable = New(ServiceUnavailable, "credential service unavailable")
	ErrTimeout            = New(Timeout, "credential service timed out")
	ErrIllegalTransition  = New(IllegalTransition, "transition not allowed in current state")
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *E) Unwrap() error { return e.Err }

// Is reports whether target is an *E of the same kind.
func (e *E) Is(target error) bool {
	t, ok := target.(*E)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// KindOf returns the kind of the first *E in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// MessageOf returns the human-friendly message of the first *E in err's chain.
// Errors without a kind fall back to err.Error().
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *E
	if stderrors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
