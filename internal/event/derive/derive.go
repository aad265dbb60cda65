// Package derive maps domain transitions to audit events. Every function is
// pure: identifiers are assigned by the event store on append.
package derive

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	armodels "apihub/internal/accessrequest/models"
	appmodels "apihub/internal/application/models"
	"apihub/internal/event/models"
	teammodels "apihub/internal/team/models"
	id "apihub/pkg/domain"
)

// Meta carries who performed a transition and when.
type Meta struct {
	User string
	At   time.Time
}

func newEvent(m Meta, entityID string, entityType models.EntityType, eventType models.EventType, detail string, params map[string]any) models.Event {
	if params == nil {
		params = map[string]any{}
	}
	return models.Event{
		EntityID:    entityID,
		EntityType:  entityType,
		EventType:   eventType,
		User:        m.User,
		Timestamp:   m.At,
		Description: eventType.Description(),
		Detail:      detail,
		Parameters:  params,
	}
}

// snapshot serializes v into a generic document so the event keeps the state
// as it was at the time of the transition.
func snapshot(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"error": err.Error()}
	}
	return out
}

func appEvent(m Meta, app appmodels.Application, eventType models.EventType, detail string, params map[string]any) models.Event {
	return newEvent(m, app.ID.String(), models.EntityApplication, eventType, detail, params)
}

func Registered(m Meta, app appmodels.Application) models.Event {
	return appEvent(m, app, models.Registered,
		fmt.Sprintf("Application %s registered", app.Name),
		map[string]any{"application": snapshot(app.WithoutSecrets())})
}

// CredentialCreated never records the client secret.
func CredentialCreated(m Meta, app appmodels.Application, cred appmodels.Credential) models.Event {
	return appEvent(m, app, models.CredentialCreated,
		fmt.Sprintf("Credential %s created for environment %s", cred.ClientID, cred.EnvironmentID),
		map[string]any{"credential": snapshot(cred.WithoutSecret())})
}

func ApplicationDeleted(m Meta, app appmodels.Application) models.Event {
	return appEvent(m, app, models.Deleted,
		fmt.Sprintf("Application %s deleted", app.Name),
		map[string]any{"application": snapshot(app.WithoutSecrets())})
}

func ApplicationRenamed(m Meta, app appmodels.Application, oldName string) models.Event {
	return appEvent(m, app, models.Renamed,
		fmt.Sprintf("Application renamed from %s to %s", oldName, app.Name),
		map[string]any{"oldName": oldName, "newName": app.Name})
}

func ApiAdded(m Meta, app appmodels.Application, api appmodels.Api) models.Event {
	return appEvent(m, app, models.ApiAdded,
		fmt.Sprintf("API %s (%s) added to application %s", api.Title, api.ID, app.Name),
		map[string]any{"api": snapshot(api)})
}

func ApiRemoved(m Meta, app appmodels.Application, api appmodels.Api) models.Event {
	return appEvent(m, app, models.ApiRemoved,
		fmt.Sprintf("API %s (%s) removed from application %s", api.Title, api.ID, app.Name),
		map[string]any{"api": snapshot(api)})
}

// TeamChanged records both sides of an ownership change. A nil newTeam
// means the owning team was removed.
func TeamChanged(m Meta, app appmodels.Application, oldTeam, newTeam *teammodels.Team) models.Event {
	params := map[string]any{}
	oldName, newName := "none", "none"
	if oldTeam != nil {
		params["oldTeam"] = snapshot(oldTeam)
		oldName = oldTeam.Name
	}
	if newTeam != nil {
		params["newTeam"] = snapshot(newTeam)
		newName = newTeam.Name
	}
	return appEvent(m, app, models.TeamChanged,
		fmt.Sprintf("Owning team changed from %s to %s", oldName, newName), params)
}

func ApplicationMemberAdded(m Meta, app appmodels.Application, email string) models.Event {
	return appEvent(m, app, models.MemberAdded,
		fmt.Sprintf("%s added to application %s", email, app.Name),
		map[string]any{"email": email})
}

func ApplicationMemberRemoved(m Meta, app appmodels.Application, email string) models.Event {
	return appEvent(m, app, models.MemberRemoved,
		fmt.Sprintf("%s removed from application %s", email, app.Name),
		map[string]any{"email": email})
}

// ScopeChange is what a reconciliation changed in one environment.
type ScopeChange struct {
	Environment id.EnvironmentID
	Added       []string
	Removed     []string
}

// ScopesFixed records the scope changes of one reconciliation, keyed by
// environment in a stable order.
func ScopesFixed(m Meta, app appmodels.Application, changes []ScopeChange) models.Event {
	sorted := make([]ScopeChange, len(changes))
	copy(sorted, changes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Environment < sorted[j].Environment })

	perEnv := make(map[string]any, len(sorted))
	added, removed := 0, 0
	for _, c := range sorted {
		perEnv[c.Environment.String()] = map[string]any{
			"added":   toAny(c.Added),
			"removed": toAny(c.Removed),
		}
		added += len(c.Added)
		removed += len(c.Removed)
	}
	return appEvent(m, app, models.ScopesFixed,
		fmt.Sprintf("%d scope(s) granted and %d revoked across %d environment(s)", added, removed, len(sorted)),
		map[string]any{"environments": perEnv})
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func arEvent(m Meta, ar armodels.AccessRequest, eventType models.EventType, detail string) models.Event {
	return newEvent(m, ar.ID.String(), models.EntityAccessRequest, eventType, detail,
		map[string]any{"accessRequest": snapshot(ar)})
}

func AccessRequestCreated(m Meta, ar armodels.AccessRequest) models.Event {
	return arEvent(m, ar, models.Created,
		fmt.Sprintf("Access to %s requested for %d endpoint(s)", ar.ApiName, len(ar.Endpoints)))
}

func AccessRequestApproved(m Meta, ar armodels.AccessRequest) models.Event {
	return arEvent(m, ar, models.Approved, fmt.Sprintf("Access to %s approved", ar.ApiName))
}

func AccessRequestRejected(m Meta, ar armodels.AccessRequest) models.Event {
	reason := ""
	if ar.Decision != nil {
		reason = ar.Decision.RejectedReason
	}
	return arEvent(m, ar, models.Rejected, fmt.Sprintf("Access to %s rejected: %s", ar.ApiName, reason))
}

func AccessRequestCanceled(m Meta, ar armodels.AccessRequest) models.Event {
	return arEvent(m, ar, models.Canceled, fmt.Sprintf("Access to %s canceled", ar.ApiName))
}

func teamEvent(m Meta, team teammodels.Team, eventType models.EventType, detail string, params map[string]any) models.Event {
	return newEvent(m, team.ID.String(), models.EntityTeam, eventType, detail, params)
}

func TeamCreated(m Meta, team teammodels.Team) models.Event {
	return teamEvent(m, team, models.Created, fmt.Sprintf("Team %s created", team.Name),
		map[string]any{"team": snapshot(team)})
}

func TeamRenamed(m Meta, team teammodels.Team, oldName string) models.Event {
	return teamEvent(m, team, models.Renamed, fmt.Sprintf("Team renamed from %s to %s", oldName, team.Name),
		map[string]any{"oldName": oldName, "newName": team.Name})
}

func TeamMemberAdded(m Meta, team teammodels.Team, email string) models.Event {
	return teamEvent(m, team, models.MemberAdded, fmt.Sprintf("%s added to team %s", email, team.Name),
		map[string]any{"email": email})
}

func TeamMemberRemoved(m Meta, team teammodels.Team, email string) models.Event {
	return teamEvent(m, team, models.MemberRemoved, fmt.Sprintf("%s removed from team %s", email, team.Name),
		map[string]any{"email": email})
}

func EgressAdded(m Meta, team teammodels.Team, egress string) models.Event {
	return teamEvent(m, team, models.EgressAdded, fmt.Sprintf("Egress %s added to team %s", egress, team.Name),
		map[string]any{"egress": egress})
}

func EgressRemoved(m Meta, team teammodels.Team, egress string) models.Event {
	return teamEvent(m, team, models.EgressRemoved, fmt.Sprintf("Egress %s removed from team %s", egress, team.Name),
		map[string]any{"egress": egress})
}
