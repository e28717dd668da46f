package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// TypedStore stores JSON-encoded values of type C under a key namespace.
type TypedStore[C any] struct {
	client    *Client
	namespace string
	ttl       time.Duration
}

// NewTypedStore creates a store writing keys as <prefix>:<namespace>:<key>.
// A ttl of 0 keeps values until overwritten.
func NewTypedStore[C any](client *Client, namespace string, ttl time.Duration) *TypedStore[C] {
	return &TypedStore[C]{client: client, namespace: namespace, ttl: ttl}
}

func (s *TypedStore[C]) fullKey(key string) string {
	return s.client.Key(s.namespace, key)
}

// Load returns (nil, nil) if the key does not exist.
func (s *TypedStore[C]) Load(ctx context.Context, key string) (*C, error) {
	raw, found, err := s.client.Get(ctx, s.fullKey(key))
	if err != nil {
		return nil, fmt.Errorf("typed store load %q: %w", key, err)
	}
	if !found {
		return nil, nil
	}

	var val C
	if err := json.Unmarshal(raw, &val); err != nil {
		return nil, fmt.Errorf("typed store unmarshal %q: %w", key, err)
	}
	return &val, nil
}

// Save serializes val to JSON and stores it with the store's TTL.
func (s *TypedStore[C]) Save(ctx context.Context, key string, val *C) error {
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("typed store marshal %q: %w", key, err)
	}
	if err := s.client.Set(ctx, s.fullKey(key), data, s.ttl); err != nil {
		return fmt.Errorf("typed store save %q: %w", key, err)
	}
	return nil
}
