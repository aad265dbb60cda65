package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"apihub/internal/accessrequest/models"
	appmodels "apihub/internal/application/models"
	"apihub/internal/event/derive"
	evmodels "apihub/internal/event/models"
	id "apihub/pkg/domain"
	dErrors "apihub/pkg/domain-errors"
	"apihub/pkg/platform/lock"
	"apihub/pkg/platform/sentinel"
	"apihub/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, req models.AccessRequest) error
	Update(ctx context.Context, req models.AccessRequest) error
	FindByID(ctx context.Context, reqID id.AccessRequestID) (models.AccessRequest, error)
	List(ctx context.Context, filter models.Filter) ([]models.AccessRequest, error)
}

// Applications is the part of the application service access requests need.
type Applications interface {
	Get(ctx context.Context, appID id.ApplicationID, includeDeleted bool) (appmodels.Application, error)
	FixScopes(ctx context.Context, appID id.ApplicationID, actor string) error
}

type EventPublisher interface {
	Emit(ctx context.Context, events ...evmodels.Event) error
}

// Service runs the access request lifecycle.
type Service struct {
	requests Store
	apps     Applications
	events   EventPublisher
	locker   lock.Locker
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithLocker serializes decisions on one request across replicas.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

func New(requests Store, apps Applications, events EventPublisher, opts ...Option) *Service {
	s := &Service{
		requests: requests,
		apps:     apps,
		events:   events,
		locker:   lock.Noop{},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCommand asks for some endpoints of an API linked to the application.
// Scopes are taken from the linked API, not from the caller.
type CreateCommand struct {
	ApplicationID         id.ApplicationID
	ApiID                 id.ApiID
	Endpoints             []appmodels.Endpoint
	SupportingInformation string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand, actor string) (models.AccessRequest, error) {
	if actor == "" {
		return models.AccessRequest{}, dErrors.New(dErrors.CodeUnauthorized, "caller identity required")
	}
	app, err := s.apps.Get(ctx, cmd.ApplicationID, false)
	if err != nil {
		return models.AccessRequest{}, err
	}
	api, ok := app.Api(cmd.ApiID)
	if !ok {
		return models.AccessRequest{}, dErrors.Newf(dErrors.CodeNotFound, "api %s is not linked to application %s", cmd.ApiID, cmd.ApplicationID)
	}
	endpoints, err := resolveEndpoints(api, cmd.Endpoints)
	if err != nil {
		return models.AccessRequest{}, err
	}

	lease, err := s.acquire(ctx, models.ApiLockKey(app.ID, api.ID), "access request for this api is being created, retry later")
	if err != nil {
		return models.AccessRequest{}, err
	}
	defer s.release(ctx, lease, "api_id", api.ID)

	pending, err := s.requests.List(ctx, models.Filter{ApplicationID: app.ID, ApiID: api.ID, Status: models.StatusPending})
	if err != nil {
		return models.AccessRequest{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list access requests")
	}
	if len(pending) > 0 {
		return models.AccessRequest{}, dErrors.Newf(dErrors.CodeConflict, "access request %s for this api is already pending", pending[0].ID)
	}

	now := requestcontext.Now(ctx)
	req, err := models.NewAccessRequest(id.NewAccessRequestID(), app.ID, api.ID, api.Title, endpoints,
		strings.TrimSpace(cmd.SupportingInformation), actor, now)
	if err != nil {
		return models.AccessRequest{}, err
	}
	if err := s.requests.Create(ctx, req); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return models.AccessRequest{}, dErrors.New(dErrors.CodeConflict, "an access request for this api is already pending")
		}
		return models.AccessRequest{}, wrapRequestErr(err, "failed to store access request")
	}
	if err := s.emit(ctx, derive.AccessRequestCreated(derive.Meta{User: actor, At: now}, req)); err != nil {
		return models.AccessRequest{}, err
	}
	return req, nil
}

// resolveEndpoints maps each requested operation onto the linked API's
// endpoint so the stored scopes always come from the API definition.
func resolveEndpoints(api appmodels.Api, requested []appmodels.Endpoint) ([]appmodels.Endpoint, error) {
	if len(requested) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one endpoint is required")
	}
	out := make([]appmodels.Endpoint, 0, len(requested))
	for _, r := range requested {
		var match *appmodels.Endpoint
		for i := range api.Endpoints {
			if api.Endpoints[i].Matches(r) {
				match = &api.Endpoints[i]
				break
			}
		}
		if match == nil {
			return nil, dErrors.Newf(dErrors.CodeValidation, "endpoint %s %s is not part of api %s", strings.ToUpper(r.HTTPMethod), r.Path, api.ID)
		}
		if containsEndpoint(out, *match) {
			continue
		}
		out = append(out, *match)
	}
	return out, nil
}

func containsEndpoint(eps []appmodels.Endpoint, e appmodels.Endpoint) bool {
	for _, existing := range eps {
		if existing.Matches(e) {
			return true
		}
	}
	return false
}

func (s *Service) Get(ctx context.Context, reqID id.AccessRequestID) (models.AccessRequest, error) {
	req, err := s.requests.FindByID(ctx, reqID)
	if err != nil {
		return models.AccessRequest{}, wrapRequestErr(err, "failed to load access request")
	}
	return req, nil
}

func (s *Service) List(ctx context.Context, filter models.Filter) ([]models.AccessRequest, error) {
	reqs, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list access requests")
	}
	return reqs, nil
}

// Approve decides the request and reconciles the application's scopes. A
// reconciliation failure is returned together with the approved request.
func (s *Service) Approve(ctx context.Context, reqID id.AccessRequestID, actor string) (models.AccessRequest, error) {
	approved, err := s.transition(ctx, reqID, actor, derive.AccessRequestApproved, func(req models.AccessRequest, now time.Time) (models.AccessRequest, error) {
		return req.Approve(actor, now)
	})
	if err != nil {
		return approved, err
	}
	app, err := s.apps.Get(ctx, approved.ApplicationID, true)
	if err != nil {
		return approved, err
	}
	if app.IsDeleted() {
		s.logger.InfoContext(ctx, "skipping scope reconciliation for deleted application",
			"application_id", app.ID, "access_request_id", approved.ID)
		return approved, nil
	}
	return approved, s.apps.FixScopes(ctx, approved.ApplicationID, actor)
}

// Reject needs a reason. It never grants access, so scopes are left alone.
func (s *Service) Reject(ctx context.Context, reqID id.AccessRequestID, reason, actor string) (models.AccessRequest, error) {
	return s.transition(ctx, reqID, actor, derive.AccessRequestRejected, func(req models.AccessRequest, now time.Time) (models.AccessRequest, error) {
		return req.Reject(actor, reason, now)
	})
}

func (s *Service) Cancel(ctx context.Context, reqID id.AccessRequestID, actor string) (models.AccessRequest, error) {
	return s.transition(ctx, reqID, actor, derive.AccessRequestCanceled, func(req models.AccessRequest, now time.Time) (models.AccessRequest, error) {
		return req.Cancel(actor, now)
	})
}

type (
	stepFunc  func(req models.AccessRequest, now time.Time) (models.AccessRequest, error)
	eventFunc func(m derive.Meta, req models.AccessRequest) evmodels.Event
)

// transition applies a lifecycle step under the request's lock. A refused
// step leaves the stored request untouched and records no event.
func (s *Service) transition(ctx context.Context, reqID id.AccessRequestID, actor string, event eventFunc, step stepFunc) (models.AccessRequest, error) {
	if actor == "" {
		return models.AccessRequest{}, dErrors.New(dErrors.CodeUnauthorized, "caller identity required")
	}
	lease, err := s.acquire(ctx, models.LockKey(reqID), "access request is being decided, retry later")
	if err != nil {
		return models.AccessRequest{}, err
	}
	defer s.release(ctx, lease, "access_request_id", reqID)

	req, err := s.Get(ctx, reqID)
	if err != nil {
		return models.AccessRequest{}, err
	}
	now := requestcontext.Now(ctx)
	out, err := step(req, now)
	if err != nil {
		return req, err
	}
	if err := s.requests.Update(ctx, out); err != nil {
		if errors.Is(err, sentinel.ErrNotUpdated) {
			return req, dErrors.Newf(dErrors.CodeNotPending, "access request %s was decided concurrently", reqID)
		}
		return req, wrapRequestErr(err, "failed to update access request")
	}
	if err := s.emit(ctx, event(derive.Meta{User: actor, At: now}, out)); err != nil {
		return out, err
	}
	s.logger.InfoContext(ctx, "access request "+strings.ToLower(string(out.Status)),
		"access_request_id", out.ID,
		"application_id", out.ApplicationID,
		"user", actor,
		"request_id", requestcontext.RequestID(ctx),
		"log_type", "audit",
	)
	return out, nil
}

const (
	lockWait = 10 * time.Second
	lockTTL  = 30 * time.Second
)

func (s *Service) acquire(ctx context.Context, key, busy string) (lock.Lease, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()
	lease, err := s.locker.Acquire(acquireCtx, key, lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, dErrors.New(dErrors.CodeConflict, busy)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock access request")
	}
	return lease, nil
}

func (s *Service) release(ctx context.Context, lease lock.Lease, attributes ...any) {
	if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
		s.logger.WarnContext(ctx, "failed to release access request lock", append(attributes, "error", err)...)
	}
}

func (s *Service) emit(ctx context.Context, events ...evmodels.Event) error {
	if err := s.events.Emit(ctx, events...); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record events")
	}
	return nil
}

func wrapRequestErr(err error, action string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "access request not found")
	case errors.Is(err, sentinel.ErrNotUpdated):
		return dErrors.New(dErrors.CodeNotFound, "access request not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}
