package service

import (
	"context"

	armodels "apihub/internal/accessrequest/models"
	"apihub/internal/application/models"
	evmodels "apihub/internal/event/models"
	"apihub/internal/identity"
	"apihub/internal/notification"
	"apihub/internal/scopes"
	teammodels "apihub/internal/team/models"
	id "apihub/pkg/domain"
)

// Store interfaces define persistence contracts.

type ApplicationStore interface {
	Create(ctx context.Context, app models.Application) error
	Update(ctx context.Context, app models.Application) error
	FindByID(ctx context.Context, appID id.ApplicationID) (models.Application, error)
	ListByTeam(ctx context.Context, teamID id.TeamID) ([]models.Application, error)
	ListByMember(ctx context.Context, email string) ([]models.Application, error)
}

type AccessRequestStore interface {
	List(ctx context.Context, filter armodels.Filter) ([]armodels.AccessRequest, error)
	FindByID(ctx context.Context, reqID id.AccessRequestID) (armodels.AccessRequest, error)
	// Update only replaces a request that is still pending.
	Update(ctx context.Context, request armodels.AccessRequest) error
}

type TeamFinder interface {
	FindByID(ctx context.Context, teamID id.TeamID) (teammodels.Team, error)
}

type EventPublisher interface {
	Emit(ctx context.Context, events ...evmodels.Event) error
}

// ScopeFixer reconciles credential scopes with what the application may hold.
type ScopeFixer interface {
	Fix(ctx context.Context, app models.Application, requests []armodels.AccessRequest) scopes.Result
	Environments() models.Environments
}

// ClientRegistrar creates and removes identity clients during registration.
type ClientRegistrar interface {
	CreateClient(ctx context.Context, env id.EnvironmentID, applicationName string) (identity.Client, error)
	DeleteClient(ctx context.Context, env id.EnvironmentID, clientID string) error
}

type Notifier interface {
	OwnershipChanged(ctx context.Context, change notification.OwnershipChange) error
}
