package store

import (
	"context"
	"sort"
	"sync"

	"apihub/internal/accessrequest/models"
	id "apihub/pkg/domain"
	"apihub/pkg/platform/sentinel"
)

// InMemoryStore keeps access requests in memory for local runs and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.AccessRequestID]models.AccessRequest
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[id.AccessRequestID]models.AccessRequest)}
}

// Create stores a new request. A second pending request for the same
// application and API is rejected with ErrAlreadyUsed.
func (s *InMemoryStore) Create(_ context.Context, req models.AccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if req.IsPending() {
		for _, existing := range s.requests {
			if existing.IsPending() && existing.ApplicationID == req.ApplicationID && existing.ApiID == req.ApiID {
				return sentinel.ErrAlreadyUsed
			}
		}
	}
	s.requests[req.ID] = req
	return nil
}

// Update replaces a pending request with its decided copy. It returns
// ErrNotUpdated when the stored request is missing or no longer pending.
func (s *InMemoryStore) Update(_ context.Context, req models.AccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.requests[req.ID]
	if !ok || !stored.IsPending() {
		return sentinel.ErrNotUpdated
	}
	s.requests[req.ID] = req
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, reqID id.AccessRequestID) (models.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[reqID]
	if !ok {
		return models.AccessRequest{}, sentinel.ErrNotFound
	}
	return req, nil
}

// List returns matching requests, oldest first.
func (s *InMemoryStore) List(_ context.Context, filter models.Filter) ([]models.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AccessRequest
	for _, req := range s.requests {
		if filter.Matches(req) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Requested.Equal(out[j].Requested) {
			return out[i].ID < out[j].ID
		}
		return out[i].Requested.Before(out[j].Requested)
	})
	return out, nil
}
