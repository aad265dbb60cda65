// Package tracer is a small tracing abstraction so services can emit spans
// without importing OpenTelemetry directly.
//
// Implementations:
//   - NoopTracer: tests
//   - OTelTracer: OpenTelemetry adapter for production
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks it as failed.
	// End must be called exactly once, typically via defer.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanFixScopes      = "scopes.fix"
	SpanFixEnvironment = "scopes.fix.environment"
	SpanIdentityCall   = "identity.call"
)

// Attribute keys.
const (
	AttrApplicationID = "application.id"
	AttrEnvironment   = "environment"
	AttrGated         = "environment.gated"
	AttrOperation     = "identity.operation"
	AttrScopesAdded   = "scopes.added"
	AttrScopesRemoved = "scopes.removed"
	AttrBreakerOpen   = "breaker.open"
)

// Event names.
const (
	EventScopeAdded   = "scope.added"
	EventScopeRemoved = "scope.removed"
)
