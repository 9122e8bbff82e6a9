// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pdiddy/bookfinder/pkg/types"
)

var _ Store = (*MemoryStore)(nil)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. Expired sessions are
// dropped lazily on access and on every Save.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an empty store. A zero ttl keeps sessions forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{entries: map[string]memoryEntry{}, ttl: ttl, now: time.Now}
}

func (m *MemoryStore) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt)
}

// Save stores a serialized copy, so later changes to s are not visible
// through the store.
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	prepare(s)
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, id)
		}
	}
	e := memoryEntry{data: data}
	if m.ttl > 0 {
		e.expiresAt = m.now().Add(m.ttl)
	}
	m.entries[s.ID] = e
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	e, ok := m.entries[id]
	if ok && m.expired(e) {
		delete(m.entries, id)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	var s Session
	if err := json.Unmarshal(e.data, &s); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}
	return &s, nil
}

func (m *MemoryStore) GetCandidate(ctx context.Context, candidateID string) (types.CandidateBook, error) {
	s, idx, err := lookup(ctx, m, candidateID)
	if err != nil {
		return types.CandidateBook{}, err
	}
	return s.Candidates[idx], nil
}

func (m *MemoryStore) UpdateCandidate(ctx context.Context, cand types.CandidateBook) error {
	s, idx, err := lookup(ctx, m, cand.ID)
	if err != nil {
		return err
	}
	s.Candidates[idx] = cand
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[s.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, s.ID)
	}
	e.data = data
	m.entries[s.ID] = e
	return nil
}
