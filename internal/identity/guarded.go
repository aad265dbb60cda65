package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	id "apihub/pkg/domain"
	"apihub/pkg/platform/circuit"
	"apihub/pkg/platform/tracer"
)

// Guarded runs every call of an inner Connector through the circuit breaker
// of the call's environment. Breakers are independent per environment.
type Guarded struct {
	inner    Connector
	breakers *circuit.Registry
	logger   *slog.Logger
	metrics  *Metrics
	tracer   tracer.Tracer
}

type GuardedOption func(*Guarded)

func WithLogger(logger *slog.Logger) GuardedOption {
	return func(g *Guarded) {
		g.logger = logger
	}
}

func WithMetrics(m *Metrics) GuardedOption {
	return func(g *Guarded) {
		g.metrics = m
	}
}

func WithTracer(t tracer.Tracer) GuardedOption {
	return func(g *Guarded) {
		g.tracer = t
	}
}

// NewGuarded wraps inner. The registry holds one breaker per environment,
// built with BreakerOptions.
func NewGuarded(inner Connector, breakers *circuit.Registry, opts ...GuardedOption) *Guarded {
	g := &Guarded{
		inner:    inner,
		breakers: breakers,
		logger:   slog.Default(),
		tracer:   tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BreakerService prefixes breaker names: "identity.<environment>".
const BreakerService = "identity"

// BreakerOptions returns the options every identity breaker needs: only
// upstream faults trip it, and transitions are logged and exported. extra
// options are applied last.
func BreakerOptions(logger *slog.Logger, m *Metrics, extra ...circuit.Option) []circuit.Option {
	opts := []circuit.Option{
		circuit.WithClassifier(CountsAsFailure),
		circuit.WithStateListener(stateListener(logger, m)),
	}
	return append(opts, extra...)
}

func stateListener(logger *slog.Logger, m *Metrics) func(name string, change circuit.StateChange) {
	return func(name string, change circuit.StateChange) {
		env := id.EnvironmentID(strings.TrimPrefix(name, BreakerService+"."))
		if m != nil {
			m.SetBreakerState(env, change.To)
		}
		if logger == nil {
			return
		}
		switch change.To {
		case circuit.StateOpen:
			logger.Error("circuit breaker opened", "circuit", name, "from", change.From.String())
		case circuit.StateClosed:
			logger.Info("circuit breaker closed", "circuit", name)
		default:
			logger.Warn("circuit breaker probing", "circuit", name)
		}
	}
}

func isBreakerOpen(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.BreakerOpen
}

func (g *Guarded) call(ctx context.Context, env id.EnvironmentID, op Operation, fn func(ctx context.Context) error) error {
	ctx, span := g.tracer.Start(ctx, tracer.SpanIdentityCall,
		tracer.String(tracer.AttrEnvironment, env.String()),
		tracer.String(tracer.AttrOperation, string(op)),
	)
	start := time.Now()

	err := g.execute(ctx, env, op, fn)

	span.SetAttributes(tracer.Bool(tracer.AttrBreakerOpen, isBreakerOpen(err)))
	span.End(err)
	if g.metrics != nil {
		g.metrics.ObserveCall(env, op, start, err)
	}
	if err != nil {
		g.logger.WarnContext(ctx, "identity call failed",
			"environment", env.String(),
			"operation", string(op),
			"kind", string(KindOf(err)),
			"breaker_open", isBreakerOpen(err),
			"error", err,
		)
	}
	return err
}

func (g *Guarded) execute(ctx context.Context, env id.EnvironmentID, op Operation, fn func(ctx context.Context) error) error {
	breaker, ok := g.breakers.Get(env.String())
	if !ok {
		return newError(KindCallError, env, op, 0, fmt.Errorf("no circuit breaker configured for environment %s", env))
	}
	err := breaker.Execute(ctx, fn)
	if errors.Is(err, circuit.ErrOpen) {
		return &Error{Kind: KindCallError, Environment: env, Operation: op, BreakerOpen: true, Err: err}
	}
	return err
}

func (g *Guarded) FetchClientScopes(ctx context.Context, env id.EnvironmentID, clientID string) ([]string, error) {
	var scopes []string
	err := g.call(ctx, env, OpFetchScopes, func(ctx context.Context) error {
		var err error
		scopes, err = g.inner.FetchClientScopes(ctx, env, clientID)
		return err
	})
	return scopes, err
}

func (g *Guarded) AddClientScope(ctx context.Context, env id.EnvironmentID, clientID, scope string) error {
	return g.call(ctx, env, OpAddScope, func(ctx context.Context) error {
		return g.inner.AddClientScope(ctx, env, clientID, scope)
	})
}

func (g *Guarded) RemoveClientScope(ctx context.Context, env id.EnvironmentID, clientID, scope string) error {
	return g.call(ctx, env, OpRemoveScope, func(ctx context.Context) error {
		return g.inner.RemoveClientScope(ctx, env, clientID, scope)
	})
}

func (g *Guarded) CreateClient(ctx context.Context, env id.EnvironmentID, applicationName string) (Client, error) {
	var client Client
	err := g.call(ctx, env, OpCreateClient, func(ctx context.Context) error {
		var err error
		client, err = g.inner.CreateClient(ctx, env, applicationName)
		return err
	})
	return client, err
}

func (g *Guarded) DeleteClient(ctx context.Context, env id.EnvironmentID, clientID string) error {
	return g.call(ctx, env, OpDeleteClient, func(ctx context.Context) error {
		return g.inner.DeleteClient(ctx, env, clientID)
	})
}

var _ Connector = (*Guarded)(nil)
