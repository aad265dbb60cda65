// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
//
// Document identifiers are the 24-character hex form of a Mongo ObjectID so that
// ids generated in memory and ids assigned by the document store share one format.
package domain

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	dErrors "apihub/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing TeamID where ApplicationID is expected.
type (
	ApplicationID   string
	TeamID          string
	AccessRequestID string
	EventID         string
)

// EnvironmentID names a deployment stage such as "production" or "test".
type EnvironmentID string

// ApiID identifies an API in the upstream catalogue. It is not generated here.
type ApiID string

// Generators.

func NewApplicationID() ApplicationID     { return ApplicationID(primitive.NewObjectID().Hex()) }
func NewTeamID() TeamID                   { return TeamID(primitive.NewObjectID().Hex()) }
func NewAccessRequestID() AccessRequestID { return AccessRequestID(primitive.NewObjectID().Hex()) }
func NewEventID() EventID                 { return EventID(primitive.NewObjectID().Hex()) }

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseApplicationID(s string) (ApplicationID, error) {
	id, err := parseObjectID(s, "application ID")
	return ApplicationID(id), err
}

func ParseTeamID(s string) (TeamID, error) {
	id, err := parseObjectID(s, "team ID")
	return TeamID(id), err
}

func ParseAccessRequestID(s string) (AccessRequestID, error) {
	id, err := parseObjectID(s, "access request ID")
	return AccessRequestID(id), err
}

func ParseEventID(s string) (EventID, error) {
	id, err := parseObjectID(s, "event ID")
	return EventID(id), err
}

func ParseApiID(s string) (ApiID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "API ID cannot be empty")
	}
	return ApiID(s), nil
}

func ParseEnvironmentID(s string) (EnvironmentID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "environment ID cannot be empty")
	}
	return EnvironmentID(s), nil
}

// String methods - for logging and debugging.

func (id ApplicationID) String() string   { return string(id) }
func (id TeamID) String() string          { return string(id) }
func (id AccessRequestID) String() string { return string(id) }
func (id EventID) String() string         { return string(id) }
func (id EnvironmentID) String() string   { return string(id) }
func (id ApiID) String() string           { return string(id) }

// IsNil checks - used for service-layer validation.

func (id ApplicationID) IsNil() bool   { return id == "" }
func (id TeamID) IsNil() bool          { return id == "" }
func (id AccessRequestID) IsNil() bool { return id == "" }
func (id EventID) IsNil() bool         { return id == "" }

// ObjectID converts a document id back to its binary form for store queries.
func ObjectID[T ~string](id T) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(string(id))
}

func parseObjectID(s, label string) (string, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	if !primitive.IsValidObjectID(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return s, nil
}
