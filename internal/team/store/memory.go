package store

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"apihub/internal/team/models"
	id "apihub/pkg/domain"
	"apihub/pkg/platform/sentinel"
)

// InMemoryStore keeps teams in memory for local runs and tests. Names are
// indexed case-insensitively.
type InMemoryStore struct {
	mu      sync.RWMutex
	teams   map[id.TeamID]models.Team
	nameIdx map[string]id.TeamID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{teams: make(map[id.TeamID]models.Team), nameIdx: make(map[string]id.TeamID)}
}

// CreateIfNameAvailable stores team unless another team already uses its
// name, ignoring case.
func (s *InMemoryStore) CreateIfNameAvailable(_ context.Context, team models.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.NormalizedName(team.Name)
	if _, taken := s.nameIdx[key]; taken {
		return sentinel.ErrAlreadyUsed
	}
	if _, ok := s.teams[team.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.teams[team.ID] = team
	s.nameIdx[key] = team.ID
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, team models.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.teams[team.ID]
	if !ok {
		return sentinel.ErrNotUpdated
	}
	key := models.NormalizedName(team.Name)
	if owner, taken := s.nameIdx[key]; taken && owner != team.ID {
		return sentinel.ErrAlreadyUsed
	}
	delete(s.nameIdx, models.NormalizedName(prev.Name))
	s.teams[team.ID] = team
	s.nameIdx[key] = team.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, teamID id.TeamID) (models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	team, ok := s.teams[teamID]
	if !ok {
		return models.Team{}, sentinel.ErrNotFound
	}
	return team, nil
}

func (s *InMemoryStore) FindByName(_ context.Context, name string) (models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	teamID, ok := s.nameIdx[models.NormalizedName(name)]
	if !ok {
		return models.Team{}, sentinel.ErrNotFound
	}
	return s.teams[teamID], nil
}

// List returns all teams, or only those with member when it is set.
func (s *InMemoryStore) List(_ context.Context, member string) ([]models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Team
	for _, team := range s.teams {
		if member != "" && !slices.ContainsFunc(team.TeamMembers, func(m string) bool { return strings.EqualFold(m, member) }) {
			continue
		}
		out = append(out, team)
	}
	sort.Slice(out, func(i, j int) bool { return models.NormalizedName(out[i].Name) < models.NormalizedName(out[j].Name) })
	return out, nil
}
