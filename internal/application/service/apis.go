package service

import (
	"context"
	"errors"
	"time"

	armodels "apihub/internal/accessrequest/models"
	"apihub/internal/application/models"
	"apihub/internal/event/derive"
	evmodels "apihub/internal/event/models"
	"apihub/internal/scopes"
	id "apihub/pkg/domain"
	dErrors "apihub/pkg/domain-errors"
	"apihub/pkg/platform/lock"
	"apihub/pkg/platform/sentinel"
	"apihub/pkg/requestcontext"
)

// AddApi links api to the application, replacing the endpoints of an already
// linked API, then reconciles scopes.
//
// A reconciliation failure is returned together with the updated application:
// the link is stored and the event recorded, only some credentials lag behind.
func (s *Service) AddApi(ctx context.Context, appID id.ApplicationID, api models.Api, actor string) (app models.Application, err error) {
	defer s.observe("add_api", time.Now(), &err)
	if err := requireActor(actor); err != nil {
		return models.Application{}, err
	}
	if api.ID == "" {
		return models.Application{}, dErrors.New(dErrors.CodeValidation, "api id is required")
	}
	err = s.withLock(ctx, appID, func(ctx context.Context) error {
		current, err := s.loadActive(ctx, appID)
		if err != nil {
			return err
		}
		app = current.WithApi(api, requestcontext.Now(ctx))
		if err := s.apps.Update(ctx, app); err != nil {
			return wrapApplicationErr(err, "failed to link api")
		}
		linked, _ := app.Api(api.ID)
		if err := s.emit(ctx, derive.ApiAdded(meta(ctx, actor), app, linked)); err != nil {
			return err
		}
		s.audit.log(ctx, "application_api_added", "application_id", appID, "api_id", api.ID, "user", actor)
		return s.reconcile(ctx, app, actor)
	})
	return app, err
}

// RemoveApi unlinks the API. Pending access requests for it are cancelled
// first, then scopes are reconciled.
func (s *Service) RemoveApi(ctx context.Context, appID id.ApplicationID, apiID id.ApiID, actor string) (app models.Application, err error) {
	defer s.observe("remove_api", time.Now(), &err)
	if err := requireActor(actor); err != nil {
		return models.Application{}, err
	}
	err = s.withLock(ctx, appID, func(ctx context.Context) error {
		current, err := s.loadActive(ctx, appID)
		if err != nil {
			return err
		}
		api, ok := current.Api(apiID)
		if !ok {
			return dErrors.Newf(dErrors.CodeNotFound, "api %s is not linked to application %s", apiID, appID)
		}
		if err := s.cancelPending(ctx, appID, apiID, actor); err != nil {
			return err
		}
		app = current.WithoutApi(apiID, requestcontext.Now(ctx))
		if err := s.apps.Update(ctx, app); err != nil {
			return wrapApplicationErr(err, "failed to unlink api")
		}
		if err := s.emit(ctx, derive.ApiRemoved(meta(ctx, actor), app, api)); err != nil {
			return err
		}
		s.audit.log(ctx, "application_api_removed", "application_id", appID, "api_id", apiID, "user", actor)
		return s.reconcile(ctx, app, actor)
	})
	return app, err
}

// cancelPending cancels the application's pending requests for apiID. Each
// request is re-read under its own lock, so a request decided in the meantime
// keeps its decision.
func (s *Service) cancelPending(ctx context.Context, appID id.ApplicationID, apiID id.ApiID, actor string) error {
	pending, err := s.requests.List(ctx, armodels.Filter{ApplicationID: appID, ApiID: apiID, Status: armodels.StatusPending})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list access requests")
	}
	events := make([]evmodels.Event, 0, len(pending))
	for _, req := range pending {
		cancelled, ok, err := s.cancelRequest(ctx, req.ID, actor)
		if err != nil {
			return err
		}
		if ok {
			events = append(events, derive.AccessRequestCanceled(meta(ctx, actor), cancelled))
		}
	}
	if len(events) == 0 {
		return nil
	}
	return s.emit(ctx, events...)
}

func (s *Service) cancelRequest(ctx context.Context, reqID id.AccessRequestID, actor string) (armodels.AccessRequest, bool, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, lockWait)
	lease, err := s.locker.Acquire(acquireCtx, armodels.LockKey(reqID), s.lockTTL)
	cancel()
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return armodels.AccessRequest{}, false, dErrors.New(dErrors.CodeConflict, "access request is being decided, retry later")
		}
		return armodels.AccessRequest{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock access request")
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "failed to release access request lock", "access_request_id", reqID, "error", err)
		}
	}()

	current, err := s.requests.FindByID(ctx, reqID)
	if err != nil {
		return armodels.AccessRequest{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load access request")
	}
	if !current.IsPending() {
		s.logger.InfoContext(ctx, "access request decided before api removal",
			"access_request_id", reqID, "status", current.Status)
		return current, false, nil
	}
	cancelled, err := current.Cancel(actor, requestcontext.Now(ctx))
	if err != nil {
		return armodels.AccessRequest{}, false, err
	}
	if err := s.requests.Update(ctx, cancelled); err != nil {
		if errors.Is(err, sentinel.ErrNotUpdated) {
			return current, false, nil
		}
		return armodels.AccessRequest{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to cancel access request")
	}
	return cancelled, true, nil
}

// FixScopes reconciles every credential of the application with its linked
// APIs and approved access requests.
func (s *Service) FixScopes(ctx context.Context, appID id.ApplicationID, actor string) (err error) {
	defer s.observe("fix_scopes", time.Now(), &err)
	if err := requireActor(actor); err != nil {
		return err
	}
	return s.withLock(ctx, appID, func(ctx context.Context) error {
		app, err := s.loadActive(ctx, appID)
		if err != nil {
			return err
		}
		return s.reconcile(ctx, app, actor)
	})
}

// reconcile runs the scope fixer and records what changed, including the
// changes of environments that completed before another one failed.
func (s *Service) reconcile(ctx context.Context, app models.Application, actor string) error {
	requests, err := s.requests.List(ctx, armodels.Filter{ApplicationID: app.ID})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list access requests")
	}
	result := s.fixer.Fix(ctx, app, requests)
	if result.Changed() {
		changes := make([]derive.ScopeChange, 0, len(result.Environments))
		for _, env := range result.Environments {
			if env.Changed() {
				changes = append(changes, derive.ScopeChange{Environment: env.Environment, Added: env.Added, Removed: env.Removed})
			}
		}
		if err := s.emit(ctx, derive.ScopesFixed(meta(ctx, actor), app, changes)); err != nil {
			return err
		}
	}
	return result.Err()
}

func isReconcileErr(err error) bool {
	var re *scopes.ReconcileError
	return errors.As(err, &re)
}
