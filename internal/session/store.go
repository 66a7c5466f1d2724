// Package session hands a finished generation from the request that produced
// it to the results endpoint. Each outcome is stored under the caller's
// session id and can be read exactly once.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"reelcraft/internal/domain"
)

var ErrNotFound = errors.New("session: no pending result")

const DefaultTTL = 30 * time.Minute

type Store interface {
	Put(ctx context.Context, sessionID string, outcome *domain.JobOutcome) error
	// Take returns the stored outcome and removes it. ErrNotFound when absent
	// or expired.
	Take(ctx context.Context, sessionID string) (*domain.JobOutcome, error)
}

type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, prefix: "reelcraft:result:", ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, sessionID string, outcome *domain.JobOutcome) error {
	data, err := encode(sessionID, outcome)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+sessionID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: store result: %w", err)
	}
	return nil
}

func (s *RedisStore) Take(ctx context.Context, sessionID string) (*domain.JobOutcome, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrNotFound
	}
	data, err := s.client.GetDel(ctx, s.prefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: take result: %w", err)
	}
	return decode(data)
}

// MemoryStore keeps results in process memory with a TTL. Used when no Redis
// address is configured.
type MemoryStore struct {
	mu    sync.Mutex
	items *gocache.Cache
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{items: gocache.New(ttl, 2*ttl)}
}

func (s *MemoryStore) Put(_ context.Context, sessionID string, outcome *domain.JobOutcome) error {
	data, err := encode(sessionID, outcome)
	if err != nil {
		return err
	}
	s.items.SetDefault(sessionID, data)
	return nil
}

func (s *MemoryStore) Take(_ context.Context, sessionID string) (*domain.JobOutcome, error) {
	s.mu.Lock()
	v, ok := s.items.Get(sessionID)
	if ok {
		s.items.Delete(sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decode(v.([]byte))
}

func encode(sessionID string, outcome *domain.JobOutcome) ([]byte, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("session: session id is required")
	}
	if outcome == nil {
		return nil, errors.New("session: outcome is required")
	}
	data, err := json.Marshal(outcome)
	if err != nil {
		return nil, fmt.Errorf("session: encode result: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*domain.JobOutcome, error) {
	var outcome domain.JobOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return nil, fmt.Errorf("session: decode result: %w", err)
	}
	return &outcome, nil
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
