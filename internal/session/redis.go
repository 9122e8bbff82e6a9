// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pdiddy/bookfinder/pkg/types"
)

var _ Store = (*RedisStore)(nil)

const keyPrefix = "bookfinder:search:"

// RedisStore keeps each session as one JSON value that expires with the
// Redis TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	prepare(s)
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+s.ID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) GetCandidate(ctx context.Context, candidateID string) (types.CandidateBook, error) {
	s, idx, err := lookup(ctx, r, candidateID)
	if err != nil {
		return types.CandidateBook{}, err
	}
	return s.Candidates[idx], nil
}

// UpdateCandidate rewrites the session with KEEPTTL so an update never
// extends its lifetime.
func (r *RedisStore) UpdateCandidate(ctx context.Context, cand types.CandidateBook) error {
	s, idx, err := lookup(ctx, r, cand.ID)
	if err != nil {
		return err
	}
	s.Candidates[idx] = cand
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+s.ID, data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	return nil
}

// Close releases the client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
