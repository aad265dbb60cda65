// Package identity talks to the upstream identity-management system that
// owns the OAuth clients behind application credentials.
package identity

import (
	"context"

	id "apihub/pkg/domain"
)

// Client is a newly created upstream OAuth client. The secret is only
// available in this response.
type Client struct {
	ClientID     string
	ClientSecret string
}

// Connector manages per-environment OAuth clients and their scopes.
//
// AddClientScope and RemoveClientScope are idempotent: adding a granted
// scope or removing an absent one succeeds. Failures are *Error values.
type Connector interface {
	FetchClientScopes(ctx context.Context, env id.EnvironmentID, clientID string) ([]string, error)
	AddClientScope(ctx context.Context, env id.EnvironmentID, clientID, scope string) error
	RemoveClientScope(ctx context.Context, env id.EnvironmentID, clientID, scope string) error
	CreateClient(ctx context.Context, env id.EnvironmentID, applicationName string) (Client, error)
	DeleteClient(ctx context.Context, env id.EnvironmentID, clientID string) error
}

// Operation names a connector call in errors, logs and metrics.
type Operation string

const (
	OpFetchScopes  Operation = "fetch_scopes"
	OpAddScope     Operation = "add_scope"
	OpRemoveScope  Operation = "remove_scope"
	OpCreateClient Operation = "create_client"
	OpDeleteClient Operation = "delete_client"
)
