package store

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"apihub/internal/application/models"
	id "apihub/pkg/domain"
	"apihub/pkg/platform/sentinel"
)

// InMemoryStore keeps applications in memory for local runs and tests.
// Soft-deleted applications stay in the map; callers filter them.
type InMemoryStore struct {
	mu   sync.RWMutex
	apps map[id.ApplicationID]models.Application
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{apps: make(map[id.ApplicationID]models.Application)}
}

func (s *InMemoryStore) Create(_ context.Context, app models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[app.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.apps[app.ID] = app.WithoutSecrets()
	return nil
}

// Update replaces the stored application. Last writer wins.
func (s *InMemoryStore) Update(_ context.Context, app models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[app.ID]; !ok {
		return sentinel.ErrNotUpdated
	}
	s.apps[app.ID] = app.WithoutSecrets()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, appID id.ApplicationID) (models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[appID]
	if !ok {
		return models.Application{}, sentinel.ErrNotFound
	}
	return app, nil
}

func (s *InMemoryStore) ListByTeam(_ context.Context, teamID id.TeamID) ([]models.Application, error) {
	return s.filter(func(app models.Application) bool { return app.TeamID == teamID }), nil
}

func (s *InMemoryStore) ListByMember(_ context.Context, email string) ([]models.Application, error) {
	return s.filter(func(app models.Application) bool {
		return slices.ContainsFunc(app.TeamMembers, func(m string) bool { return strings.EqualFold(m, email) })
	}), nil
}

func (s *InMemoryStore) filter(keep func(models.Application) bool) []models.Application {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Application
	for _, app := range s.apps {
		if !app.IsDeleted() && keep(app) {
			out = append(out, app)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out
}
