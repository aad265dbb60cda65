package identity

import (
	"context"
	"errors"
	"fmt"

	id "apihub/pkg/domain"
	dErrors "apihub/pkg/domain-errors"
)

// Kind is the normalized failure taxonomy of connector calls.
type Kind string

const (
	KindUnauthorized       Kind = "unauthorized"
	KindClientNotFound     Kind = "client_not_found"
	KindUnexpectedResponse Kind = "unexpected_response"
	KindCallError          Kind = "call_error"
	KindTimeout            Kind = "timeout"
	// KindCanceled marks a call abandoned because the caller went away.
	KindCanceled Kind = "canceled"
)

// Error is returned by every Connector implementation. BreakerOpen marks a
// call rejected by the environment's circuit breaker without reaching the
// network; such errors have KindCallError.
type Error struct {
	Kind        Kind
	Environment id.EnvironmentID
	Operation   Operation
	StatusCode  int
	BreakerOpen bool
	Err         error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("identity %s in %s [%s]", e.Operation, e.Environment, e.Kind)
	if e.BreakerOpen {
		msg += ": circuit open"
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, env id.EnvironmentID, op Operation, status int, err error) *Error {
	return &Error{Kind: kind, Environment: env, Operation: op, StatusCode: status, Err: err}
}

// KindOf returns the kind of a connector error, or KindCallError for any
// other error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindCallError
}

// CountsAsFailure reports whether err should trip a circuit breaker. Only
// upstream faults count; a missing client, a rejected credential or a caller
// that gave up is not a sign of an unhealthy dependency.
func CountsAsFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	switch KindOf(err) {
	case KindCallError, KindTimeout, KindUnexpectedResponse:
		return true
	case KindUnauthorized, KindClientNotFound, KindCanceled:
		return false
	}
	return true
}

// ToDomain translates a connector error to a domain error without leaking
// upstream details into the message.
func ToDomain(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		return dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "identity system call failed")
	}
	switch e.Kind {
	case KindClientNotFound:
		return dErrors.Wrap(err, dErrors.CodeNotFound, fmt.Sprintf("credential not found in %s", e.Environment))
	case KindTimeout:
		return dErrors.Wrap(err, dErrors.CodeTimeout, fmt.Sprintf("identity system timed out in %s", e.Environment))
	case KindUnexpectedResponse:
		return dErrors.Wrap(err, dErrors.CodeUpstreamUnexpectedResponse, fmt.Sprintf("unexpected identity system response in %s", e.Environment))
	default:
		return dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, fmt.Sprintf("identity system unavailable in %s", e.Environment))
	}
}
