// Package scopes reconciles the OAuth scopes granted to an application's
// credentials with the scopes its linked APIs and approved access requests
// call for.
package scopes

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	armodels "apihub/internal/accessrequest/models"
	appmodels "apihub/internal/application/models"
	"apihub/internal/identity"
	"apihub/pkg/platform/tracer"
)

// Fixer makes the identity system's granted scopes match the computed
// target scopes, one environment at a time per goroutine. It never writes to
// the database.
type Fixer struct {
	connector    identity.Connector
	environments appmodels.Environments
	logger       *slog.Logger
	metrics      *Metrics
	tracer       tracer.Tracer
}

type Option func(*Fixer)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Fixer) {
		f.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(f *Fixer) {
		f.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(f *Fixer) {
		f.tracer = t
	}
}

func NewFixer(connector identity.Connector, environments appmodels.Environments, opts ...Option) *Fixer {
	f := &Fixer{
		connector:    connector,
		environments: environments,
		logger:       slog.Default(),
		tracer:       tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fixer) Environments() appmodels.Environments {
	return f.environments
}

// Fix reconciles every environment independently. A failing environment
// stops at its first failed call; the others still run to completion.
// Callers inspect Result.Err for partial failure.
//
// Credentials that do not match the environment catalogue (a missing master
// credential or one tagged with an unknown environment) panic with an
// internal inconsistency before any remote call is made.
func (f *Fixer) Fix(ctx context.Context, app appmodels.Application, requests []armodels.AccessRequest) Result {
	start := time.Now()
	ctx, span := f.tracer.Start(ctx, tracer.SpanFixScopes,
		tracer.String(tracer.AttrApplicationID, app.ID.String()),
	)

	app.CheckCredentials(f.environments)
	credentials := make([]appmodels.Credential, len(f.environments))
	for i, env := range f.environments {
		credentials[i] = app.MasterCredential(env.ID)
	}

	results := make([]EnvResult, len(f.environments))
	var g errgroup.Group
	for i, env := range f.environments {
		g.Go(func() error {
			results[i] = f.fixEnvironment(ctx, app, env, credentials[i].ClientID, requests)
			return nil
		})
	}
	_ = g.Wait()

	result := Result{Environments: results}
	span.End(result.Err())
	if f.metrics != nil {
		f.metrics.ObserveRun(time.Since(start).Seconds())
	}
	return result
}

func (f *Fixer) fixEnvironment(ctx context.Context, app appmodels.Application, env appmodels.Environment, clientID string, requests []armodels.AccessRequest) (res EnvResult) {
	ctx, span := f.tracer.Start(ctx, tracer.SpanFixEnvironment,
		tracer.String(tracer.AttrApplicationID, app.ID.String()),
		tracer.String(tracer.AttrEnvironment, env.ID.String()),
		tracer.Bool(tracer.AttrGated, env.Gated),
	)
	res = EnvResult{Environment: env.ID, ClientID: clientID}
	defer func() {
		span.SetAttributes(
			tracer.Int(tracer.AttrScopesAdded, len(res.Added)),
			tracer.Int(tracer.AttrScopesRemoved, len(res.Removed)),
		)
		var err error
		if res.Failure != nil {
			err = res.Failure.Err
		}
		span.End(err)
		f.observe(ctx, app, res)
	}()

	current, err := f.connector.FetchClientScopes(ctx, env.ID, clientID)
	if err != nil {
		res.Failure = &Failure{Operation: identity.OpFetchScopes, Err: err}
		return res
	}

	toAdd, toRemove := Diff(TargetScopes(app, env, requests), current)

	// Additions go first so a scope moving between endpoints is never
	// briefly revoked.
	for _, scope := range toAdd {
		if err := f.connector.AddClientScope(ctx, env.ID, clientID, scope); err != nil {
			res.Failure = &Failure{Operation: identity.OpAddScope, Scope: scope, Err: err}
			return res
		}
		span.AddEvent(tracer.EventScopeAdded, tracer.String("scope", scope))
		res.Added = append(res.Added, scope)
	}
	for _, scope := range toRemove {
		if err := f.connector.RemoveClientScope(ctx, env.ID, clientID, scope); err != nil {
			res.Failure = &Failure{Operation: identity.OpRemoveScope, Scope: scope, Err: err}
			return res
		}
		span.AddEvent(tracer.EventScopeRemoved, tracer.String("scope", scope))
		res.Removed = append(res.Removed, scope)
	}
	return res
}

func (f *Fixer) observe(ctx context.Context, app appmodels.Application, res EnvResult) {
	if f.metrics != nil {
		f.metrics.ObserveEnvironment(res)
	}
	if res.Failure != nil {
		f.logger.WarnContext(ctx, "scope reconciliation failed",
			"application_id", app.ID.String(),
			"environment", res.Environment.String(),
			"operation", string(res.Failure.Operation),
			"scope", res.Failure.Scope,
			"added", res.Added,
			"removed", res.Removed,
			"error", res.Failure.Err,
		)
		return
	}
	if res.Changed() {
		f.logger.InfoContext(ctx, "scopes reconciled",
			"application_id", app.ID.String(),
			"environment", res.Environment.String(),
			"added", res.Added,
			"removed", res.Removed,
		)
	}
}
