package models

import (
	"slices"
	"strings"
	"time"

	id "apihub/pkg/domain"
	dErrors "apihub/pkg/domain-errors"
)

// Deleted marks a soft-deleted application.
type Deleted struct {
	At time.Time `json:"at"`
	By string    `json:"by"`
}

// Application is the aggregate root for an API consumer registration.
//
// Values are treated as immutable: the With* methods return modified copies
// and never alias the receiver's slices.
type Application struct {
	ID          id.ApplicationID `json:"id"`
	Name        string           `json:"name"`
	Created     time.Time        `json:"created"`
	LastUpdated time.Time        `json:"lastUpdated"`
	CreatedBy   string           `json:"createdBy"`
	TeamID      id.TeamID        `json:"teamId,omitempty"`
	TeamMembers []string         `json:"teamMembers,omitempty"`
	Apis        []Api            `json:"apis"`
	Credentials []Credential     `json:"credentials"`
	Deleted     *Deleted         `json:"deleted,omitempty"`
}

// NewApplication registers an application owned either by a team or by an
// inline member list.
func NewApplication(appID id.ApplicationID, name, createdBy string, teamID id.TeamID, members []string, now time.Time) (Application, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Application{}, dErrors.New(dErrors.CodeInvariantViolation, "application name cannot be empty")
	}
	if createdBy == "" {
		return Application{}, dErrors.New(dErrors.CodeInvariantViolation, "application creator cannot be empty")
	}
	app := Application{
		ID:          appID,
		Name:        name,
		Created:     now,
		LastUpdated: now,
		CreatedBy:   createdBy,
		TeamID:      teamID,
	}
	if teamID.IsNil() {
		app.TeamMembers = slices.Clone(members)
		if !slices.Contains(app.TeamMembers, createdBy) {
			app.TeamMembers = append(app.TeamMembers, createdBy)
		}
	}
	return app, nil
}

func (a Application) IsDeleted() bool {
	return a.Deleted != nil
}

// HasTeam reports whether ownership is delegated to a team.
func (a Application) HasTeam() bool {
	return !a.TeamID.IsNil()
}

func (a Application) Api(apiID id.ApiID) (Api, bool) {
	for _, api := range a.Apis {
		if api.ID == apiID {
			return api.clone(), true
		}
	}
	return Api{}, false
}

// WithApi links api, replacing the endpoints of an already linked API with
// the same id and keeping its position.
func (a Application) WithApi(api Api, now time.Time) Application {
	out := a.clone()
	api = api.clone()
	if api.Title == "" {
		api.Title = UnknownApiTitle
	}
	for i := range out.Apis {
		if out.Apis[i].ID == api.ID {
			out.Apis[i] = api
			out.LastUpdated = now
			return out
		}
	}
	out.Apis = append(out.Apis, api)
	out.LastUpdated = now
	return out
}

// WithoutApi unlinks apiID. Unlinking an absent API returns an unchanged copy.
func (a Application) WithoutApi(apiID id.ApiID, now time.Time) Application {
	out := a.clone()
	idx := slices.IndexFunc(out.Apis, func(api Api) bool { return api.ID == apiID })
	if idx < 0 {
		return out
	}
	out.Apis = slices.Delete(out.Apis, idx, idx+1)
	out.LastUpdated = now
	return out
}

// WithTeam hands ownership to teamID. Inline members are dropped because
// team ownership and inline members are exclusive.
func (a Application) WithTeam(teamID id.TeamID, now time.Time) Application {
	out := a.clone()
	out.TeamID = teamID
	out.TeamMembers = nil
	out.LastUpdated = now
	return out
}

// WithoutTeam removes the owning team.
func (a Application) WithoutTeam(now time.Time) Application {
	out := a.clone()
	out.TeamID = ""
	out.LastUpdated = now
	return out
}

func (a Application) WithMember(email string, now time.Time) Application {
	out := a.clone()
	if !slices.Contains(out.TeamMembers, email) {
		out.TeamMembers = append(out.TeamMembers, email)
		out.LastUpdated = now
	}
	return out
}

func (a Application) WithoutMember(email string, now time.Time) Application {
	out := a.clone()
	before := len(out.TeamMembers)
	out.TeamMembers = slices.DeleteFunc(out.TeamMembers, func(m string) bool { return m == email })
	if len(out.TeamMembers) != before {
		out.LastUpdated = now
	}
	return out
}

// WithCredential adds a credential. The secret is kept on the returned value
// so the caller can show it once.
func (a Application) WithCredential(c Credential, now time.Time) Application {
	out := a.clone()
	out.Credentials = append(out.Credentials, c)
	out.LastUpdated = now
	return out
}

// WithoutSecrets strips transient secrets from all credentials.
func (a Application) WithoutSecrets() Application {
	out := a.clone()
	for i := range out.Credentials {
		out.Credentials[i] = out.Credentials[i].WithoutSecret()
	}
	return out
}

func (a Application) WithName(name string, now time.Time) Application {
	out := a.clone()
	out.Name = name
	out.LastUpdated = now
	return out
}

func (a Application) WithDeleted(by string, now time.Time) Application {
	out := a.clone()
	out.Deleted = &Deleted{At: now, By: by}
	out.LastUpdated = now
	return out
}

// CredentialsFor returns the credentials of one environment, newest first.
func (a Application) CredentialsFor(envID id.EnvironmentID) []Credential {
	var out []Credential
	for _, c := range a.Credentials {
		if c.EnvironmentID == envID {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(x, y Credential) int { return y.Created.Compare(x.Created) })
	return out
}

// MasterCredential returns the credential representing the application in
// env. An active application without one has corrupted data, so this panics
// with an internal inconsistency instead of returning an error.
func (a Application) MasterCredential(envID id.EnvironmentID) Credential {
	creds := a.CredentialsFor(envID)
	if len(creds) == 0 {
		panic(dErrors.Inconsistency("application %s has no credential for environment %s", a.ID, envID))
	}
	return creds[0]
}

// CheckCredentials panics when a credential references an environment
// outside the catalogue or an environment lacks a credential.
func (a Application) CheckCredentials(envs Environments) {
	for _, c := range a.Credentials {
		if _, ok := envs.Get(c.EnvironmentID); !ok {
			panic(dErrors.Inconsistency("application %s has a credential for unknown environment %s", a.ID, c.EnvironmentID))
		}
	}
	for _, env := range envs {
		_ = a.MasterCredential(env.ID)
	}
}

// IsMember reports whether email is an inline member of the application.
func (a Application) IsMember(email string) bool {
	return slices.Contains(a.TeamMembers, email)
}

func (a Application) clone() Application {
	out := a
	out.TeamMembers = slices.Clone(a.TeamMembers)
	if a.Apis != nil {
		out.Apis = make([]Api, len(a.Apis))
		for i, api := range a.Apis {
			out.Apis[i] = api.clone()
		}
	}
	out.Credentials = slices.Clone(a.Credentials)
	if a.Deleted != nil {
		d := *a.Deleted
		out.Deleted = &d
	}
	return out
}
