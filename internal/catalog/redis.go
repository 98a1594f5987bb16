package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/labelcompose-worker/internal/shipment"
)

// DefaultRedisKey is the hash holding the catalog, one field per tracking code
const DefaultRedisKey = "labelcompose:catalog"

// RedisStore keeps the catalog in a Redis hash whose values are JSON item lists
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a new catalog store on an existing client
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// Snapshot reads the whole hash into an immutable Map
func (s *RedisStore) Snapshot(ctx context.Context) (Map, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return Map{}, fmt.Errorf("failed to read catalog %s: %w", s.key, err)
	}
	return decodeFields(fields)
}

// Merge adds or overrides the entries of m, leaving other codes untouched
func (s *RedisStore) Merge(ctx context.Context, m Map) error {
	fields, err := encodeFields(m)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	if err := s.client.HSet(ctx, s.key, fields).Err(); err != nil {
		return fmt.Errorf("failed to update catalog %s: %w", s.key, err)
	}
	return nil
}

// Replace swaps the stored catalog for m atomically
func (s *RedisStore) Replace(ctx context.Context, m Map) error {
	fields, err := encodeFields(m)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(fields) > 0 {
			pipe.HSet(ctx, s.key, fields)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace catalog %s: %w", s.key, err)
	}
	return nil
}

func encodeFields(m Map) (map[string]interface{}, error) {
	fields := make(map[string]interface{}, m.Len())
	for code, items := range m.Entries() {
		data, err := json.Marshal(items)
		if err != nil {
			return nil, fmt.Errorf("failed to encode catalog entry %s: %w", code, err)
		}
		fields[code] = string(data)
	}
	return fields, nil
}

func decodeFields(fields map[string]string) (Map, error) {
	entries := make(map[string][]shipment.LineItem, len(fields))
	for code, raw := range fields {
		var items []shipment.LineItem
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return Map{}, fmt.Errorf("failed to decode catalog entry %s: %w", code, err)
		}
		entries[code] = items
	}
	return NewMap(entries)
}
