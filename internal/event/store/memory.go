package store

import (
	"context"
	"sort"
	"sync"

	"apihub/internal/event/models"
	id "apihub/pkg/domain"
)

// InMemoryStore keeps the event log in process memory. Events are stored in
// append order and returned as copies.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []models.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Append assigns an id when the event has none and returns the stored event.
func (s *InMemoryStore) Append(_ context.Context, event models.Event) (models.Event, error) {
	if event.ID.IsNil() {
		event.ID = id.NewEventID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return event, nil
}

// ListByEntity returns the timeline of one entity, oldest first.
func (s *InMemoryStore) ListByEntity(_ context.Context, entityID string) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Event
	for _, e := range s.events {
		if e.EntityID == entityID {
			out = append(out, e)
		}
	}
	sortByTimestamp(out)
	return out, nil
}

// ListByEntityType returns events of one entity type, oldest first.
func (s *InMemoryStore) ListByEntityType(_ context.Context, entityType models.EntityType) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Event
	for _, e := range s.events {
		if e.EntityType == entityType {
			out = append(out, e)
		}
	}
	sortByTimestamp(out)
	return out, nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

func sortByTimestamp(events []models.Event) {
	sort.SliceStable(events, func(i, j int) bool { return events[i].Timestamp.Before(events[j].Timestamp) })
}
