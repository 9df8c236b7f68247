/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package errors defines the typed error kinds the reconcile loop branches
// on, each carrying its own retry and backoff disposition.
package errors

import "fmt"

// BackoffClass groups retryable errors into the two backoff tiers the
// scheduler applies.
type BackoffClass int

const (
	// BackoffNone applies to terminal errors; no backoff is computed.
	BackoffNone BackoffClass = iota
	// BackoffShort is used for transient network/IO errors.
	BackoffShort
	// BackoffLong is used for reachability failures, which are expected to
	// persist for extended outages.
	BackoffLong
)

// Kind enumerates the error kinds from the error handling design.
type Kind string

const (
	KindSecretMissing    Kind = "SecretMissing"
	KindSecretMalformed  Kind = "SecretMalformed"
	KindMissingMachine   Kind = "MissingMachine"
	KindConflict         Kind = "Conflict"
	KindUnreachable      Kind = "Unreachable"
	KindAuthFailed       Kind = "AuthFailed"
	KindHostKeyMismatch  Kind = "HostKeyMismatch"
	KindRefNotFound      Kind = "RefNotFound"
	KindNetworkError     Kind = "NetworkError"
	KindIO               Kind = "IO"
	KindTimeout          Kind = "Timeout"
	KindApplyFailed      Kind = "ApplyFailed"
	KindStatusConflict   Kind = "ConflictError"
	KindPathCollision    Kind = "PathCollision"
)

// ReconcileError is the common shape every component-level error is wrapped
// into before it reaches the reconciler.
type ReconcileError struct {
	Kind    Kind
	Message string
	// ExitCode is set for KindApplyFailed.
	ExitCode int
	Err      error
}

func (e *ReconcileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ReconcileError) Unwrap() error { return e.Err }

// Retryable reports whether the scheduler should requeue rather than park
// the resource as terminally Failed.
func (e *ReconcileError) Retryable() bool {
	switch e.Kind {
	case KindUnreachable, KindNetworkError, KindIO, KindTimeout, KindApplyFailed, KindStatusConflict:
		return true
	default:
		return false
	}
}

// BackoffClass selects which of the two jittered backoff tiers applies to a
// retryable error.
func (e *ReconcileError) BackoffClass() BackoffClass {
	switch e.Kind {
	case KindUnreachable:
		return BackoffLong
	case KindNetworkError, KindIO, KindTimeout, KindApplyFailed, KindStatusConflict:
		return BackoffShort
	default:
		return BackoffNone
	}
}

// New constructs a ReconcileError without a wrapped cause.
func New(kind Kind, message string) *ReconcileError {
	return &ReconcileError{Kind: kind, Message: message}
}

// Wrap constructs a ReconcileError wrapping a lower-level cause.
func Wrap(kind Kind, message string, err error) *ReconcileError {
	return &ReconcileError{Kind: kind, Message: message, Err: err}
}

// WrapApplyFailed constructs the KindApplyFailed error carrying the remote
// exit code.
func WrapApplyFailed(message string, exitCode int, err error) *ReconcileError {
	return &ReconcileError{Kind: KindApplyFailed, Message: message, ExitCode: exitCode, Err: err}
}

// As reports whether err (or something it wraps) is a *ReconcileError, and
// returns it.
func As(err error) (*ReconcileError, bool) {
	re, ok := err.(*ReconcileError)
	if ok {
		return re, true
	}
	type unwrapper interface{ Unwrap() error }
	for u, ok := err.(unwrapper); ok; u, ok = err.(unwrapper) {
		err = u.Unwrap()
		if re, ok := err.(*ReconcileError); ok {
			return re, true
		}
	}
	return nil, false
}
