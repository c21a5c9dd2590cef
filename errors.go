package pgromcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorKind categorises an engine error without exposing driver-specific codes.
type ErrorKind string

const (
	// KindConnection — target unreachable or credentials rejected. Fatal for
	// the current request only; the pool may recover on the next attempt.
	KindConnection ErrorKind = "connection_error"
	// KindPoolExhausted — all connection slots checked out and the acquire
	// timeout elapsed. The only retryable kind.
	KindPoolExhausted ErrorKind = "pool_exhausted"
	// KindQuery — the caller-supplied SQL was rejected or failed, including
	// any mutation attempt bounced by the read-only transaction.
	KindQuery ErrorKind = "query_error"
	// KindSerialization — a returned value's type has no conversion rule.
	// The request fails rather than silently dropping data.
	KindSerialization ErrorKind = "serialization_error"
)

// Error is the single error type produced by the engine. All pgx and driver
// errors are translated into an Error before crossing the engine boundary.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the caller may retry the request as-is.
func (e *Error) Retryable() bool {
	return e.Kind == KindPoolExhausted
}

// KindOf returns the ErrorKind of err, or KindQuery if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindQuery
}

// IsRetryable reports whether err is a temporary capacity error.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}

func connectionErr(msg string, cause error) *Error {
	return &Error{Kind: KindConnection, Message: msg, Cause: cause}
}

func poolExhaustedErr(msg string, cause error) *Error {
	return &Error{Kind: KindPoolExhausted, Message: msg, Cause: cause}
}

func queryErr(cause error) *Error {
	return &Error{Kind: KindQuery, Message: "query failed", Cause: cause}
}

func serializationErr(column string, value interface{}) *Error {
	return &Error{
		Kind:    KindSerialization,
		Message: fmt.Sprintf("no conversion rule for column %q (Go type %T)", column, value),
	}
}

// classifyAcquireErr maps a pool Acquire failure. acquireCtx carries both the
// acquire timeout and the caller's query deadline, so an expired deadline is
// pool exhaustion only when the caller's own deadline has not fired — a query
// timeout that elapses mid-acquire is a query timeout, not a capacity signal.
func classifyAcquireErr(parentCtx, acquireCtx context.Context, timeoutSeconds int, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || acquireCtx.Err() == context.DeadlineExceeded {
		if parentCtx.Err() == context.DeadlineExceeded {
			return &Error{Kind: KindQuery, Message: "query timed out while acquiring a connection", Cause: err}
		}
		return poolExhaustedErr(
			fmt.Sprintf("no connection became available within %ds", timeoutSeconds), err)
	}
	if errors.Is(err, context.Canceled) {
		return poolExhaustedErr("request cancelled while waiting for a connection", err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// The server answered: authentication or database-level rejection.
		return connectionErr("database rejected connection", err)
	}
	return connectionErr("database unreachable", err)
}

// classifyQueryErr maps an execution failure inside the transaction.
func classifyQueryErr(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return queryErr(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindQuery, Message: "query timed out", Cause: err}
	}
	return queryErr(err)
}
