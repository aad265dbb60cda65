package scopes

import (
	"errors"
	"fmt"
	"strings"

	"apihub/internal/identity"
	id "apihub/pkg/domain"
	dErrors "apihub/pkg/domain-errors"
)

// Failure identifies the connector call that stopped an environment's
// reconciliation.
type Failure struct {
	Operation identity.Operation
	Scope     string
	Err       error
}

// EnvResult is the outcome for one environment. Added and Removed list the
// calls that succeeded, so they are accurate even when Failure is set.
type EnvResult struct {
	Environment id.EnvironmentID
	ClientID    string
	Added       []string
	Removed     []string
	Failure     *Failure
}

func (r EnvResult) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

// Result holds one entry per environment, in catalogue order.
type Result struct {
	Environments []EnvResult
}

// Changed reports whether any environment gained or lost a scope.
func (r Result) Changed() bool {
	for _, env := range r.Environments {
		if env.Changed() {
			return true
		}
	}
	return false
}

func (r Result) Failed() []EnvResult {
	var out []EnvResult
	for _, env := range r.Environments {
		if env.Failure != nil {
			out = append(out, env)
		}
	}
	return out
}

// Err returns nil when every environment reconciled, otherwise a
// *ReconcileError describing each failed environment.
func (r Result) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	return newReconcileError(failed)
}

// FailureDetail is the caller-facing description of a failed environment.
// It names the operation and failure kind but not upstream payloads.
type FailureDetail struct {
	Environment string `json:"environment"`
	Operation   string `json:"operation"`
	Kind        string `json:"kind"`
	Scope       string `json:"scope,omitempty"`
	BreakerOpen bool   `json:"breakerOpen,omitempty"`
}

// ReconcileError reports environments whose scopes could not be reconciled.
// It unwraps to a domain error whose code reflects the most telling failure:
// a timeout first, then an unexpected response, otherwise unavailability.
type ReconcileError struct {
	failures []FailureDetail
	domain   error
}

func newReconcileError(failed []EnvResult) *ReconcileError {
	details := make([]FailureDetail, 0, len(failed))
	envs := make([]string, 0, len(failed))
	code := dErrors.CodeUpstreamUnavailable
	var timedOut, unexpected bool
	var first error
	for _, f := range failed {
		var connErr *identity.Error
		breakerOpen := errors.As(f.Failure.Err, &connErr) && connErr.BreakerOpen
		kind := identity.KindOf(f.Failure.Err)
		switch kind {
		case identity.KindTimeout:
			timedOut = true
		case identity.KindUnexpectedResponse:
			unexpected = true
		}
		if first == nil {
			first = f.Failure.Err
		}
		details = append(details, FailureDetail{
			Environment: f.Environment.String(),
			Operation:   string(f.Failure.Operation),
			Kind:        string(kind),
			Scope:       f.Failure.Scope,
			BreakerOpen: breakerOpen,
		})
		envs = append(envs, f.Environment.String())
	}
	switch {
	case timedOut:
		code = dErrors.CodeTimeout
	case unexpected:
		code = dErrors.CodeUpstreamUnexpectedResponse
	}
	return &ReconcileError{
		failures: details,
		domain: &dErrors.Error{
			Code:    code,
			Message: fmt.Sprintf("scope reconciliation incomplete in %s; retry fix-scopes", strings.Join(envs, ", ")),
			Err:     first,
		},
	}
}

func (e *ReconcileError) Error() string {
	return e.domain.Error()
}

func (e *ReconcileError) Unwrap() error {
	return e.domain
}

// Details lists the failed environments for the HTTP error body.
func (e *ReconcileError) Details() any {
	return e.failures
}

func (e *ReconcileError) Failures() []FailureDetail {
	out := make([]FailureDetail, len(e.failures))
	copy(out, e.failures)
	return out
}
