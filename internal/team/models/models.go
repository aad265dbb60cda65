package models

import (
	"slices"
	"strings"
	"time"

	id "apihub/pkg/domain"
	dErrors "apihub/pkg/domain-errors"
)

type TeamType string

const (
	TeamTypeConsumer TeamType = "consumer"
	TeamTypeProducer TeamType = "producer"
)

func (t TeamType) IsValid() bool {
	return t == TeamTypeConsumer || t == TeamTypeProducer
}

// Team owns applications. Names are unique ignoring case.
type Team struct {
	ID          id.TeamID `json:"id"`
	Name        string    `json:"name"`
	Created     time.Time `json:"created"`
	TeamMembers []string  `json:"teamMembers"`
	TeamType    TeamType  `json:"teamType"`
	Egresses    []string  `json:"egresses"`
}

func NewTeam(teamID id.TeamID, name string, teamType TeamType, members []string, now time.Time) (Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Team{}, dErrors.New(dErrors.CodeInvariantViolation, "team name cannot be empty")
	}
	if teamType == "" {
		teamType = TeamTypeConsumer
	}
	if !teamType.IsValid() {
		return Team{}, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown team type %q", teamType)
	}
	if teamType == TeamTypeProducer && len(members) == 0 {
		return Team{}, dErrors.New(dErrors.CodeInvariantViolation, "producer teams need at least one member")
	}
	return Team{
		ID:          teamID,
		Name:        name,
		Created:     now,
		TeamMembers: slices.Clone(members),
		TeamType:    teamType,
	}, nil
}

// NormalizedName is the key used for uniqueness checks.
func NormalizedName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (t Team) HasMember(email string) bool {
	return slices.Contains(t.TeamMembers, email)
}

func (t Team) WithName(name string) Team {
	out := t.clone()
	out.Name = strings.TrimSpace(name)
	return out
}

func (t Team) WithMember(email string) Team {
	out := t.clone()
	if !slices.Contains(out.TeamMembers, email) {
		out.TeamMembers = append(out.TeamMembers, email)
	}
	return out
}

func (t Team) WithoutMember(email string) Team {
	out := t.clone()
	out.TeamMembers = slices.DeleteFunc(out.TeamMembers, func(m string) bool { return m == email })
	return out
}

func (t Team) WithEgress(egress string) Team {
	out := t.clone()
	if !slices.Contains(out.Egresses, egress) {
		out.Egresses = append(out.Egresses, egress)
	}
	return out
}

func (t Team) WithoutEgress(egress string) Team {
	out := t.clone()
	out.Egresses = slices.DeleteFunc(out.Egresses, func(e string) bool { return e == egress })
	return out
}

func (t Team) clone() Team {
	out := t
	out.TeamMembers = slices.Clone(t.TeamMembers)
	out.Egresses = slices.Clone(t.Egresses)
	return out
}
