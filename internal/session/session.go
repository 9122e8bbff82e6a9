// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session keeps the candidate list of a search for a limited time so
// a later request can pick one candidate by ID. Stores exist for Redis and
// for process memory.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pdiddy/bookfinder/pkg/types"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("search session not found")

// Session is one stored search.
type Session struct {
	ID         string                `json:"id"`
	Query      string                `json:"query"`
	Language   string                `json:"language"`
	Intent     types.QueryIntent     `json:"intent"`
	Candidates []types.CandidateBook `json:"candidates"`
	CreatedAt  time.Time             `json:"created_at"`
}

// Store persists sessions.
type Store interface {
	// Save assigns the session ID (when empty) and candidate IDs, then
	// stores the session with the store's TTL.
	Save(ctx context.Context, s *Session) error

	Get(ctx context.Context, id string) (*Session, error)

	// GetCandidate resolves a candidate ID of the form "<session>-<n>".
	GetCandidate(ctx context.Context, candidateID string) (types.CandidateBook, error)

	// UpdateCandidate replaces the stored candidate with the same ID
	// without extending the session's lifetime.
	UpdateCandidate(ctx context.Context, cand types.CandidateBook) error
}

// New builds the store selected by cfg.Backend. The Redis store is pinged
// once so a bad address surfaces at startup.
func New(ctx context.Context, cfg types.SessionConfig) (Store, error) {
	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		return NewRedisStore(client, cfg.TTL), nil
	case "memory", "":
		return NewMemoryStore(cfg.TTL), nil
	}
	return nil, fmt.Errorf("%w: unknown session backend %q", types.ErrInvalidConfig, cfg.Backend)
}

// prepare fills in the IDs Save is responsible for.
func prepare(s *Session) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	for i := range s.Candidates {
		s.Candidates[i].ID = CandidateID(s.ID, i)
	}
}

// CandidateID is the ID of the i-th (0-based) candidate of a session.
func CandidateID(sessionID string, i int) string {
	return sessionID + "-" + strconv.Itoa(i+1)
}

// splitCandidateID reverses CandidateID. Session IDs contain dashes, so
// the split is at the last one.
func splitCandidateID(candidateID string) (string, int, error) {
	i := strings.LastIndexByte(candidateID, '-')
	if i <= 0 {
		return "", 0, fmt.Errorf("%w: malformed id %q", types.ErrCandidateNotFound, candidateID)
	}
	n, err := strconv.Atoi(candidateID[i+1:])
	if err != nil || n < 1 {
		return "", 0, fmt.Errorf("%w: malformed id %q", types.ErrCandidateNotFound, candidateID)
	}
	return candidateID[:i], n - 1, nil
}

// candidateAt returns the candidate addressed by candidateID in s.
func candidateAt(s *Session, candidateID string, index int) (types.CandidateBook, error) {
	if index >= len(s.Candidates) || s.Candidates[index].ID != candidateID {
		return types.CandidateBook{}, fmt.Errorf("%w: %s", types.ErrCandidateNotFound, candidateID)
	}
	return s.Candidates[index], nil
}

func lookup(ctx context.Context, st Store, candidateID string) (*Session, int, error) {
	sid, idx, err := splitCandidateID(candidateID)
	if err != nil {
		return nil, 0, err
	}
	s, err := st.Get(ctx, sid)
	if errors.Is(err, ErrNotFound) {
		return nil, 0, fmt.Errorf("%w: %s (%w)", types.ErrCandidateNotFound, candidateID, err)
	}
	if err != nil {
		return nil, 0, err
	}
	if _, err := candidateAt(s, candidateID, idx); err != nil {
		return nil, 0, err
	}
	return s, idx, nil
}
