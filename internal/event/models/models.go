package models

import (
	"time"

	id "apihub/pkg/domain"
	dErrors "apihub/pkg/domain-errors"
)

// MigrationUser attributes events written by data migrations.
const MigrationUser = "migration"

// EntityType names the aggregate an event belongs to.
type EntityType string

const (
	EntityApplication   EntityType = "APPLICATION"
	EntityAccessRequest EntityType = "ACCESS_REQUEST"
	EntityTeam          EntityType = "TEAM"
	EntityApi           EntityType = "API"
)

var AllEntityTypes = []EntityType{EntityApplication, EntityAccessRequest, EntityTeam, EntityApi}

func ParseEntityType(raw string) (EntityType, error) {
	for _, t := range AllEntityTypes {
		if string(t) == raw {
			return t, nil
		}
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown entity type %q", raw)
}

// EventType is the closed set of audited transitions.
type EventType string

const (
	ApiAdded          EventType = "API_ADDED"
	EgressAdded       EventType = "EGRESS_ADDED"
	MemberAdded       EventType = "MEMBER_ADDED"
	Approved          EventType = "APPROVED"
	Canceled          EventType = "CANCELED"
	TeamChanged       EventType = "TEAM_CHANGED"
	Created           EventType = "CREATED"
	CredentialCreated EventType = "CREDENTIAL_CREATED"
	Deleted           EventType = "DELETED"
	ScopesFixed       EventType = "SCOPES_FIXED"
	Promoted          EventType = "PROMOTED"
	Registered        EventType = "REGISTERED"
	Rejected          EventType = "REJECTED"
	ApiRemoved        EventType = "API_REMOVED"
	EgressRemoved     EventType = "EGRESS_REMOVED"
	MemberRemoved     EventType = "MEMBER_REMOVED"
	Renamed           EventType = "RENAMED"
	CredentialRevoked EventType = "CREDENTIAL_REVOKED"
	Updated           EventType = "UPDATED"
)

var AllEventTypes = []EventType{
	ApiAdded, EgressAdded, MemberAdded, Approved, Canceled, TeamChanged, Created,
	CredentialCreated, Deleted, ScopesFixed, Promoted, Registered, Rejected, ApiRemoved,
	EgressRemoved, MemberRemoved, Renamed, CredentialRevoked, Updated,
}

// Description is the human readable label shown in timelines.
func (t EventType) Description() string {
	switch t {
	case ApiAdded:
		return "API added"
	case EgressAdded:
		return "Egress added"
	case MemberAdded:
		return "Member added"
	case Approved:
		return "Access request approved"
	case Canceled:
		return "Access request canceled"
	case TeamChanged:
		return "Owning team changed"
	case Created:
		return "Created"
	case CredentialCreated:
		return "Credential created"
	case Deleted:
		return "Deleted"
	case ScopesFixed:
		return "Scopes fixed"
	case Promoted:
		return "Promoted"
	case Registered:
		return "Application registered"
	case Rejected:
		return "Access request rejected"
	case ApiRemoved:
		return "API removed"
	case EgressRemoved:
		return "Egress removed"
	case MemberRemoved:
		return "Member removed"
	case Renamed:
		return "Renamed"
	case CredentialRevoked:
		return "Credential revoked"
	case Updated:
		return "Updated"
	}
	return ""
}

func ParseEventType(raw string) (EventType, error) {
	for _, t := range AllEventTypes {
		if string(t) == raw {
			return t, nil
		}
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown event type %q", raw)
}

// Event is an append-only audit record. Stores never update or delete one.
type Event struct {
	ID          id.EventID     `json:"id"`
	EntityID    string         `json:"entityId"`
	EntityType  EntityType     `json:"entityType"`
	EventType   EventType      `json:"eventType"`
	User        string         `json:"user"`
	Timestamp   time.Time      `json:"timestamp"`
	Description string         `json:"description"`
	Detail      string         `json:"detail"`
	Parameters  map[string]any `json:"parameters"`
}
