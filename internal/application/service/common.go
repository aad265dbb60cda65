package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"apihub/internal/application/models"
	"apihub/internal/event/derive"
	id "apihub/pkg/domain"
	dErrors "apihub/pkg/domain-errors"
	"apihub/pkg/platform/lock"
	"apihub/pkg/platform/sentinel"
	"apihub/pkg/requestcontext"
)

func requireApplicationID(appID id.ApplicationID) error {
	if appID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "application ID required")
	}
	return nil
}

func requireActor(actor string) error {
	if actor == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "caller identity required")
	}
	return nil
}

// requireActive rejects edits of soft-deleted applications.
func requireActive(app models.Application) error {
	if app.IsDeleted() {
		return dErrors.Newf(dErrors.CodeConflict, "application %s has been deleted", app.ID)
	}
	return nil
}

// Error wrapping helpers translate sentinel errors to domain errors.

func wrapApplicationErr(err error, action string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "application not found")
	case errors.Is(err, sentinel.ErrNotUpdated):
		return dErrors.New(dErrors.CodeConflict, "application changed concurrently")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}

func wrapTeamErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "team not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load team")
}

func meta(ctx context.Context, actor string) derive.Meta {
	return derive.Meta{User: actor, At: requestcontext.Now(ctx)}
}

// lockWait bounds how long an edit queues behind another edit of the same
// application.
const lockWait = 10 * time.Second

// withLock runs fn while holding the application's lock. The lease is
// extended while fn runs; fn's context is cancelled if the lock is lost.
func (s *Service) withLock(ctx context.Context, appID id.ApplicationID, fn func(ctx context.Context) error) error {
	acquireCtx, cancel := context.WithTimeout(ctx, lockWait)
	lease, err := s.locker.Acquire(acquireCtx, applicationLockKey(appID), s.lockTTL)
	cancel()
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return dErrors.New(dErrors.CodeConflict, "application is being modified, retry later")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock application")
	}
	runCtx, stop := lock.KeepAlive(ctx, lease, s.lockTTL)
	defer func() {
		stop()
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "failed to release application lock", "application_id", appID, "error", err)
		}
	}()
	err = fn(runCtx)
	if errors.Is(context.Cause(runCtx), lock.ErrLost) {
		s.logger.ErrorContext(ctx, "application lock lost during edit", "application_id", appID)
	}
	return err
}

func applicationLockKey(appID id.ApplicationID) string {
	return "application:" + appID.String()
}

// auditLogger writes the audit trail of application changes to the log.
// The durable record is the event log.
type auditLogger struct {
	logger *slog.Logger
}

func (a auditLogger) log(ctx context.Context, event string, attributes ...any) {
	if a.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	a.logger.InfoContext(ctx, event, args...)
}
