package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/crmkit/redis"
)

// Record is one stored snapshot.
type Record struct {
	Payload  []byte    `json:"payload"`
	StoredAt time.Time `json:"storedAt"`
}

// Store persists snapshots by key.
type Store interface {
	Save(ctx context.Context, key string, rec Record) error
	// Load returns false when no snapshot exists for key.
	Load(ctx context.Context, key string) (Record, bool, error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, key string, rec Record) error {
	rec.Payload = append([]byte(nil), rec.Payload...)
	s.mu.Lock()
	s.records[key] = rec
	s.mu.Unlock()
	return nil
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, key string) (Record, bool, error) {
	s.mu.RLock()
	rec, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return Record{}, false, nil
	}
	rec.Payload = append([]byte(nil), rec.Payload...)
	return rec, true, nil
}

// Len returns the number of stored snapshots.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// RedisStore is a Store backed by Redis.
type RedisStore struct {
	records *redis.TypedStore[Record]
}

// NewRedisStore creates a store under the "snapshots" namespace.
// Snapshots expire after ttl; 0 keeps them until overwritten.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{records: redis.NewTypedStore[Record](client, "snapshots", ttl)}
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, key string, rec Record) error {
	return s.records.Save(ctx, key, &rec)
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, key string) (Record, bool, error) {
	rec, err := s.records.Load(ctx, key)
	if err != nil || rec == nil {
		return Record{}, false, err
	}
	return *rec, true, nil
}

// SaveJSON encodes v and stores it under key, stamped with the current time.
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("snapshot: encode %q: %w", key, err)
	}
	return s.Save(ctx, key, Record{Payload: data, StoredAt: time.Now()})
}

// LoadJSON decodes the snapshot under key into a T.
func LoadJSON[T any](ctx context.Context, s Store, key string) (T, Record, bool, error) {
	var v T
	rec, ok, err := s.Load(ctx, key)
	if err != nil || !ok {
		return v, rec, false, err
	}
	if err := json.Unmarshal(rec.Payload, &v); err != nil {
		return v, rec, false, fmt.Errorf("snapshot: decode %q: %w", key, err)
	}
	return v, rec, true, nil
}
