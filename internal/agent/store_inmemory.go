package agent

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is an in-memory implementation of Store for testing and
// single-node development mode.
type InMemoryStore struct {
	mu     sync.RWMutex
	agents map[string]*Agent
}

// NewInMemoryStore creates a new in-memory agent store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		agents: make(map[string]*Agent),
	}
}

// Add seeds an agent. Agent identities are owned by an external
// user-management subsystem, so Add is not part of the Store contract.
func (s *InMemoryStore) Add(a *Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.Status == "" {
		a.Status = StatusAvailable
	}
	a.UpdatedAt = time.Now().UTC()
	stored := copyAgent(a)
	s.agents[a.ID] = stored
}

// Get retrieves an agent by id.
func (s *InMemoryStore) Get(ctx context.Context, id string) (*Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.agents[id]
	if !ok {
		return nil, ErrNotFound
	}

	return copyAgent(a), nil
}

// IsWithinBusinessHours reports whether the agent may be available right now.
func (s *InMemoryStore) IsWithinBusinessHours(ctx context.Context, agentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.agents[agentID]
	if !ok {
		return false, ErrNotFound
	}

	return len(a.BusinessHourIDs) == 0 || len(a.OpenBusinessHourIDs) > 0, nil
}

// OpenBusinessHours adds assigned ∩ ids to every agent's open set.
func (s *InMemoryStore) OpenBusinessHours(ctx context.Context, ids []string) error {
	open := make(map[string]bool, len(ids))
	for _, id := range ids {
		open[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.agents {
		already := make(map[string]bool, len(a.OpenBusinessHourIDs))
		for _, id := range a.OpenBusinessHourIDs {
			already[id] = true
		}
		for _, id := range a.BusinessHourIDs {
			if open[id] && !already[id] {
				a.OpenBusinessHourIDs = append(a.OpenBusinessHourIDs, id)
			}
		}
		a.UpdatedAt = time.Now().UTC()
	}

	return nil
}

// CloseBusinessHours removes ids from every agent's open set.
func (s *InMemoryStore) CloseBusinessHours(ctx context.Context, ids []string) error {
	closed := make(map[string]bool, len(ids))
	for _, id := range ids {
		closed[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.agents {
		kept := a.OpenBusinessHourIDs[:0]
		for _, id := range a.OpenBusinessHourIDs {
			if !closed[id] {
				kept = append(kept, id)
			}
		}
		a.OpenBusinessHourIDs = kept
		a.UpdatedAt = time.Now().UTC()
	}

	return nil
}

// RemoveBusinessHoursFromAgents clears every agent's open set.
func (s *InMemoryStore) RemoveBusinessHoursFromAgents(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.agents {
		a.OpenBusinessHourIDs = nil
		a.UpdatedAt = time.Now().UTC()
	}

	return nil
}

// DetachBusinessHour removes a business hour id from every agent referencing it.
func (s *InMemoryStore) DetachBusinessHour(ctx context.Context, businessHourID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.agents {
		a.BusinessHourIDs = removeID(a.BusinessHourIDs, businessHourID)
		a.OpenBusinessHourIDs = removeID(a.OpenBusinessHourIDs, businessHourID)
		a.UpdatedAt = time.Now().UTC()
	}

	return nil
}

// AssignBusinessHour adds a business hour id to the given agents.
func (s *InMemoryStore) AssignBusinessHour(ctx context.Context, agentIDs []string, businessHourID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, agentID := range agentIDs {
		a, ok := s.agents[agentID]
		if !ok {
			return ErrNotFound
		}
		a.BusinessHourIDs = append(removeID(a.BusinessHourIDs, businessHourID), businessHourID)
		a.UpdatedAt = time.Now().UTC()
	}

	return nil
}

// UpdateLivechatStatus recomputes every agent's status from its business hour state.
func (s *InMemoryStore) UpdateLivechatStatus(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.agents {
		if len(a.BusinessHourIDs) == 0 || len(a.OpenBusinessHourIDs) > 0 {
			a.Status = StatusAvailable
		} else {
			a.Status = StatusNotAvailable
		}
		a.UpdatedAt = time.Now().UTC()
	}

	return nil
}

func removeID(ids []string, id string) []string {
	kept := ids[:0]
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	return kept
}

func copyAgent(a *Agent) *Agent {
	stored := *a
	stored.BusinessHourIDs = append([]string(nil), a.BusinessHourIDs...)
	stored.OpenBusinessHourIDs = append([]string(nil), a.OpenBusinessHourIDs...)
	return &stored
}

// Ensure InMemoryStore implements Store
var _ Store = (*InMemoryStore)(nil)
