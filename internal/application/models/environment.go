package models

import (
	"sort"

	id "apihub/pkg/domain"
)

// Environment is a deployment stage. Gated environments only receive scopes
// backed by an approved access request.
type Environment struct {
	ID    id.EnvironmentID `json:"id"`
	Rank  int              `json:"rank"`
	Gated bool             `json:"gated"`
}

// Environments is the catalogue of active environments, ordered by rank.
type Environments []Environment

func NewEnvironments(envs ...Environment) Environments {
	out := make(Environments, len(envs))
	copy(out, envs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

func (e Environments) Get(envID id.EnvironmentID) (Environment, bool) {
	for _, env := range e {
		if env.ID == envID {
			return env, true
		}
	}
	return Environment{}, false
}

func (e Environments) IDs() []id.EnvironmentID {
	ids := make([]id.EnvironmentID, len(e))
	for i, env := range e {
		ids[i] = env.ID
	}
	return ids
}
