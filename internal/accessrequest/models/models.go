package models

import (
	"slices"
	"strings"
	"time"

	appmodels "apihub/internal/application/models"
	id "apihub/pkg/domain"
	dErrors "apihub/pkg/domain-errors"
)

// Status is the lifecycle state of an access request.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// AllStatuses lists every status; tests use it to check exhaustive handling.
var AllStatuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusCancelled}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled:
		return true
	case StatusPending:
		return false
	}
	return false
}

func (s Status) IsValid() bool {
	return slices.Contains(AllStatuses, s)
}

// ParseStatus accepts any casing.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown access request status %q", raw)
	}
	return s, nil
}

// Decision is set when a request is approved or rejected.
type Decision struct {
	Decided        time.Time `json:"decided"`
	DecidedBy      string    `json:"decidedBy"`
	RejectedReason string    `json:"rejectedReason,omitempty"`
}

// Cancelled is set when a request is cancelled.
type Cancelled struct {
	Cancelled   time.Time `json:"cancelled"`
	CancelledBy string    `json:"cancelledBy"`
}

// AccessRequest asks for the scopes of some endpoints of one API on behalf
// of one application. Decision and Cancelled are mutually exclusive.
type AccessRequest struct {
	ID                    id.AccessRequestID   `json:"id"`
	ApplicationID         id.ApplicationID     `json:"applicationId"`
	ApiID                 id.ApiID             `json:"apiId"`
	ApiName               string               `json:"apiName"`
	Status                Status               `json:"status"`
	Endpoints             []appmodels.Endpoint `json:"endpoints"`
	SupportingInformation string               `json:"supportingInformation"`
	Requested             time.Time            `json:"requested"`
	RequestedBy           string               `json:"requestedBy"`
	Decision              *Decision            `json:"decision,omitempty"`
	Cancelled             *Cancelled           `json:"cancelled,omitempty"`
}

func NewAccessRequest(
	requestID id.AccessRequestID,
	appID id.ApplicationID,
	apiID id.ApiID,
	apiName string,
	endpoints []appmodels.Endpoint,
	supportingInformation string,
	requestedBy string,
	now time.Time,
) (AccessRequest, error) {
	if len(endpoints) == 0 {
		return AccessRequest{}, dErrors.New(dErrors.CodeInvariantViolation, "access request must name at least one endpoint")
	}
	if requestedBy == "" {
		return AccessRequest{}, dErrors.New(dErrors.CodeInvariantViolation, "access request requester cannot be empty")
	}
	eps := make([]appmodels.Endpoint, len(endpoints))
	for i, e := range endpoints {
		e.Scopes = slices.Clone(e.Scopes)
		eps[i] = e
	}
	return AccessRequest{
		ID:                    requestID,
		ApplicationID:         appID,
		ApiID:                 apiID,
		ApiName:               apiName,
		Status:                StatusPending,
		Endpoints:             eps,
		SupportingInformation: supportingInformation,
		Requested:             now,
		RequestedBy:           requestedBy,
	}, nil
}

func (a AccessRequest) IsPending() bool {
	return a.Status == StatusPending
}

func (a AccessRequest) notPending() error {
	return dErrors.Newf(dErrors.CodeNotPending, "access request %s is %s", a.ID, strings.ToLower(string(a.Status)))
}

// Approve returns the approved copy. Only pending requests can be decided.
func (a AccessRequest) Approve(by string, now time.Time) (AccessRequest, error) {
	if !a.IsPending() {
		return a, a.notPending()
	}
	out := a
	out.Status = StatusApproved
	out.Decision = &Decision{Decided: now, DecidedBy: by}
	return out, nil
}

// Reject returns the rejected copy. A reason is required.
func (a AccessRequest) Reject(by, reason string, now time.Time) (AccessRequest, error) {
	if !a.IsPending() {
		return a, a.notPending()
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return a, dErrors.New(dErrors.CodeValidation, "rejection reason is required")
	}
	out := a
	out.Status = StatusRejected
	out.Decision = &Decision{Decided: now, DecidedBy: by, RejectedReason: reason}
	return out, nil
}

// Cancel returns the cancelled copy. Decided requests cannot be cancelled.
func (a AccessRequest) Cancel(by string, now time.Time) (AccessRequest, error) {
	if !a.IsPending() {
		return a, a.notPending()
	}
	out := a
	out.Status = StatusCancelled
	out.Cancelled = &Cancelled{Cancelled: now, CancelledBy: by}
	return out, nil
}

// Endpoint returns the requested endpoint addressing the same operation as e.
func (a AccessRequest) Endpoint(e appmodels.Endpoint) (appmodels.Endpoint, bool) {
	for _, requested := range a.Endpoints {
		if requested.Matches(e) {
			return requested, true
		}
	}
	return appmodels.Endpoint{}, false
}

// Scopes returns the distinct scopes of the requested endpoints.
func (a AccessRequest) Scopes() []string {
	return appmodels.NewApi(a.ApiID, a.ApiName, a.Endpoints).Scopes()
}

// LockKey names the lock serializing lifecycle steps of one request.
func LockKey(reqID id.AccessRequestID) string {
	return "access-request:" + reqID.String()
}

// ApiLockKey names the lock serializing request creation for one API of an
// application.
func ApiLockKey(appID id.ApplicationID, apiID id.ApiID) string {
	return "access-request:" + appID.String() + ":" + apiID.String()
}

// Filter narrows a listing. Zero fields match everything.
type Filter struct {
	ApplicationID id.ApplicationID
	ApiID         id.ApiID
	Status        Status
}

func (f Filter) Matches(a AccessRequest) bool {
	if !f.ApplicationID.IsNil() && a.ApplicationID != f.ApplicationID {
		return false
	}
	if f.ApiID != "" && a.ApiID != f.ApiID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}
