package testutil

import (
	"time"

	armodels "apihub/internal/accessrequest/models"
	appmodels "apihub/internal/application/models"
	teammodels "apihub/internal/team/models"
	id "apihub/pkg/domain"
)

// Fixed values shared across tests. Document ids are valid 24-hex ids.
var TestIDs = struct {
	App1   id.ApplicationID
	App2   id.ApplicationID
	Team1  id.TeamID
	Team2  id.TeamID
	Req1   id.AccessRequestID
	Req2   id.AccessRequestID
	Api1   id.ApiID
	Api2   id.ApiID
	Prod   id.EnvironmentID
	Test   id.EnvironmentID
	Member string
}{
	App1:   id.ApplicationID("64b000000000000000000001"),
	App2:   id.ApplicationID("64b000000000000000000002"),
	Team1:  id.TeamID("64c000000000000000000001"),
	Team2:  id.TeamID("64c000000000000000000002"),
	Req1:   id.AccessRequestID("64d000000000000000000001"),
	Req2:   id.AccessRequestID("64d000000000000000000002"),
	Api1:   id.ApiID("api-1"),
	Api2:   id.ApiID("api-2"),
	Prod:   id.EnvironmentID("production"),
	Test:   id.EnvironmentID("test"),
	Member: "dev@example.com",
}

// Epoch is the clock used by builders.
var Epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// Environments is the default catalogue: production gated, test ungated.
func Environments() appmodels.Environments {
	return appmodels.NewEnvironments(
		appmodels.Environment{ID: TestIDs.Test, Rank: 1},
		appmodels.Environment{ID: TestIDs.Prod, Rank: 2, Gated: true},
	)
}

// ClientID is the master client id builders give an application in env.
func ClientID(appID id.ApplicationID, env id.EnvironmentID) string {
	return env.String() + "-" + appID.String()
}

// ApplicationBuilder provides a fluent interface for building test applications.
type ApplicationBuilder struct {
	app appmodels.Application
}

// NewApplicationBuilder returns an application owned by inline member
// TestIDs.Member with one credential per default environment.
func NewApplicationBuilder() *ApplicationBuilder {
	b := &ApplicationBuilder{
		app: appmodels.Application{
			ID:          TestIDs.App1,
			Name:        "Test Application",
			Created:     Epoch,
			LastUpdated: Epoch,
			CreatedBy:   TestIDs.Member,
			TeamMembers: []string{TestIDs.Member},
		},
	}
	return b.WithCredentials(Environments().IDs()...)
}

func (b *ApplicationBuilder) WithID(appID id.ApplicationID) *ApplicationBuilder {
	b.app.ID = appID
	return b.WithCredentials(credentialEnvs(b.app)...)
}

func (b *ApplicationBuilder) WithName(name string) *ApplicationBuilder {
	b.app.Name = name
	return b
}

// WithCredentials replaces the credentials with one per env, using ClientID.
func (b *ApplicationBuilder) WithCredentials(envs ...id.EnvironmentID) *ApplicationBuilder {
	b.app.Credentials = nil
	for _, env := range envs {
		b.app.Credentials = append(b.app.Credentials,
			appmodels.NewCredential(env, ClientID(b.app.ID, env), "", Epoch).WithoutSecret())
	}
	return b
}

func (b *ApplicationBuilder) WithTeam(teamID id.TeamID) *ApplicationBuilder {
	b.app.TeamID = teamID
	b.app.TeamMembers = nil
	return b
}

func (b *ApplicationBuilder) WithMembers(members ...string) *ApplicationBuilder {
	b.app.TeamID = ""
	b.app.TeamMembers = members
	return b
}

// WithApi links an API whose endpoints are given as (method, path, scopes).
func (b *ApplicationBuilder) WithApi(apiID id.ApiID, endpoints ...appmodels.Endpoint) *ApplicationBuilder {
	b.app = b.app.WithApi(appmodels.NewApi(apiID, "API "+apiID.String(), endpoints), Epoch)
	return b
}

func (b *ApplicationBuilder) Deleted(by string) *ApplicationBuilder {
	b.app = b.app.WithDeleted(by, Epoch)
	return b
}

func (b *ApplicationBuilder) Build() appmodels.Application {
	return b.app
}

func credentialEnvs(app appmodels.Application) []id.EnvironmentID {
	var envs []id.EnvironmentID
	for _, c := range app.Credentials {
		envs = append(envs, c.EnvironmentID)
	}
	return envs
}

// Endpoint is shorthand for an endpoint literal.
func Endpoint(method, path string, scopes ...string) appmodels.Endpoint {
	return appmodels.Endpoint{HTTPMethod: method, Path: path, Scopes: scopes}
}

// AccessRequestBuilder provides a fluent interface for building test access requests.
type AccessRequestBuilder struct {
	ar armodels.AccessRequest
}

// NewAccessRequestBuilder returns a pending request for TestIDs.App1 and
// TestIDs.Api1.
func NewAccessRequestBuilder() *AccessRequestBuilder {
	return &AccessRequestBuilder{
		ar: armodels.AccessRequest{
			ID:            TestIDs.Req1,
			ApplicationID: TestIDs.App1,
			ApiID:         TestIDs.Api1,
			ApiName:       "API " + TestIDs.Api1.String(),
			Status:        armodels.StatusPending,
			Requested:     Epoch,
			RequestedBy:   TestIDs.Member,
		},
	}
}

func (b *AccessRequestBuilder) WithID(reqID id.AccessRequestID) *AccessRequestBuilder {
	b.ar.ID = reqID
	return b
}

func (b *AccessRequestBuilder) ForApplication(appID id.ApplicationID) *AccessRequestBuilder {
	b.ar.ApplicationID = appID
	return b
}

func (b *AccessRequestBuilder) ForApi(apiID id.ApiID) *AccessRequestBuilder {
	b.ar.ApiID = apiID
	b.ar.ApiName = "API " + apiID.String()
	return b
}

func (b *AccessRequestBuilder) WithEndpoints(endpoints ...appmodels.Endpoint) *AccessRequestBuilder {
	b.ar.Endpoints = endpoints
	return b
}

func (b *AccessRequestBuilder) Approved() *AccessRequestBuilder {
	b.ar.Status = armodels.StatusApproved
	b.ar.Decision = &armodels.Decision{Decided: Epoch, DecidedBy: "approver@example.com"}
	return b
}

func (b *AccessRequestBuilder) Rejected(reason string) *AccessRequestBuilder {
	b.ar.Status = armodels.StatusRejected
	b.ar.Decision = &armodels.Decision{Decided: Epoch, DecidedBy: "approver@example.com", RejectedReason: reason}
	return b
}

func (b *AccessRequestBuilder) Cancelled() *AccessRequestBuilder {
	b.ar.Status = armodels.StatusCancelled
	b.ar.Cancelled = &armodels.Cancelled{Cancelled: Epoch, CancelledBy: TestIDs.Member}
	return b
}

func (b *AccessRequestBuilder) Build() armodels.AccessRequest {
	return b.ar
}

// NewTestTeam creates a consumer team with one member.
func NewTestTeam(teamID id.TeamID, name string, members ...string) teammodels.Team {
	if len(members) == 0 {
		members = []string{TestIDs.Member}
	}
	return teammodels.Team{
		ID:          teamID,
		Name:        name,
		Created:     Epoch,
		TeamMembers: members,
		TeamType:    teammodels.TeamTypeConsumer,
	}
}
