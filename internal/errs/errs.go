// Package errs defines the error-kind taxonomy used across the ingestion
// pipeline so callers can branch on category (retry, surface, terminate)
// without string-matching messages.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies a class of error and its propagation policy, per the
// error handling design: which kinds retry, which are fatal to a job, and
// which are fatal at startup.
type Kind string

const (
	KindCancellation     Kind = "cancellation"      // job -> cancelled, no retry
	KindRedirect         Kind = "redirect"           // surfaced to caller, not retried
	KindFetcher          Kind = "fetcher"            // retryable or not, see Retryable
	KindParse            Kind = "parse"              // recorded on scrape result, falls back to text splitting
	KindStore            Kind = "store"              // non-fatal per-page unless Fatal is set
	KindEmbedding        Kind = "embedding"          // fatal to the page insert, propagates as store error
	KindSchemaMigration  Kind = "schema_migration"   // fatal at startup
	KindConfiguration    Kind = "configuration"      // fatal at startup
)

// Error is the common error type across the pipeline. Kind drives how a
// caller responds; Retryable and Fatal refine KindFetcher and KindStore
// respectively, since those two kinds have both a benign and a terminal form.
type Error struct {
	Kind      Kind
	Message   string
	Retryable bool
	Fatal     bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is(err, &Error{Kind: KindX}) to match on Kind alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	return true
}

func NewCancellationError(msg string) *Error {
	return &Error{Kind: KindCancellation, Message: msg}
}

func NewRedirectError(msg string, cause error) *Error {
	return &Error{Kind: KindRedirect, Message: msg, Cause: cause}
}

// NewFetcherError wraps a fetch failure. retryable distinguishes 408/429/5xx
// (retried with backoff) from 400/401/403/405/410 (reported, not retried).
func NewFetcherError(msg string, cause error, retryable bool) *Error {
	return &Error{Kind: KindFetcher, Message: msg, Cause: cause, Retryable: retryable}
}

func NewParseError(msg string, cause error) *Error {
	return &Error{Kind: KindParse, Message: msg, Cause: cause}
}

// NewStoreError wraps a storage failure. fatal distinguishes a page-level
// insert failure (non-fatal, reported via onJobError) from a failure during
// refresh deletion handling (fatal to the job).
func NewStoreError(msg string, cause error, fatal bool) *Error {
	return &Error{Kind: KindStore, Message: msg, Cause: cause, Fatal: fatal}
}

func NewEmbeddingError(msg string, cause error) *Error {
	return &Error{Kind: KindEmbedding, Message: msg, Cause: cause, Fatal: true}
}

func NewSchemaMigrationError(msg string, cause error) *Error {
	return &Error{Kind: KindSchemaMigration, Message: msg, Cause: cause, Fatal: true}
}

func NewConfigurationError(msg string) *Error {
	return &Error{Kind: KindConfiguration, Message: msg, Fatal: true}
}

// IsKind reports whether err (or something it wraps) is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == k
}

// IsRetryable reports whether err is a fetcher error marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindFetcher && e.Retryable
}
