package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

/*
LEARNING: PRESENCE ACROSS INSTANCES

Each server process only knows about its own WebSocket connections.
To answer "who is editing doc X?" for the whole cluster, every instance
writes its own view into Redis:

  presence:<docID>  (hash)  field = instance id, value = {"identities": [...], "updated_at": ...}
  presence:docs     (set)   document ids with at least one entry

Readers merge all fields. An instance that dies stops refreshing its field,
so entries older than the TTL are skipped instead of haunting the list.
*/

const (
	keyPrefix = "presence:"
	indexKey  = "presence:docs"
)

// instanceEntry is one process's view of a document
type instanceEntry struct {
	Identities []string  `json:"identities"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RedisStore stores presence as hash presence:<docID> with one field per
// server instance. Entries older than ttl belong to dead instances and are ignored.
type RedisStore struct {
	client     *redis.Client
	instanceID string
	ttl        time.Duration
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(redisURL, instanceID string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, instanceID, ttl), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client, instanceID string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisStore{
		client:     client,
		instanceID: instanceID,
		ttl:        ttl,
	}
}

func (s *RedisStore) key(docID string) string {
	return keyPrefix + docID
}

// Publish replaces this instance's presence list for a document.
// An empty list removes the instance's entry.
func (s *RedisStore) Publish(ctx context.Context, docID string, identities []string) error {
	key := s.key(docID)

	if len(identities) == 0 {
		if err := s.client.HDel(ctx, key, s.instanceID).Err(); err != nil {
			return fmt.Errorf("clear presence: %w", err)
		}
		return s.dropIfEmpty(ctx, docID)
	}

	data, err := json.Marshal(instanceEntry{Identities: identities, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal presence: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, s.instanceID, data)
		pipe.Expire(ctx, key, s.ttl)
		pipe.SAdd(ctx, indexKey, docID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish presence: %w", err)
	}
	return nil
}

// Members merges every live instance's identities for a document (sorted, deduplicated)
func (s *RedisStore) Members(ctx context.Context, docID string) ([]string, error) {
	fields, err := s.client.HGetAll(ctx, s.key(docID)).Result()
	if err != nil {
		return nil, fmt.Errorf("lookup presence: %w", err)
	}

	cutoff := time.Now().Add(-s.ttl)
	members := []string{}
	for _, raw := range fields {
		var entry instanceEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		if entry.UpdatedAt.Before(cutoff) {
			continue
		}
		members = append(members, entry.Identities...)
	}

	sort.Strings(members)
	return slices.Compact(members), nil
}

// Documents lists document ids that still have a presence entry.
// Ids whose hash expired are pruned from the index.
func (s *RedisStore) Documents(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list presence documents: %w", err)
	}

	live := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := s.client.Exists(ctx, s.key(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("check presence: %w", err)
		}
		if n == 0 {
			if err := s.client.SRem(ctx, indexKey, id).Err(); err != nil {
				return nil, fmt.Errorf("unindex presence: %w", err)
			}
			continue
		}
		live = append(live, id)
	}

	sort.Strings(live)
	return live, nil
}

func (s *RedisStore) dropIfEmpty(ctx context.Context, docID string) error {
	n, err := s.client.HLen(ctx, s.key(docID)).Result()
	if err != nil {
		return fmt.Errorf("check presence: %w", err)
	}
	if n == 0 {
		if err := s.client.SRem(ctx, indexKey, docID).Err(); err != nil {
			return fmt.Errorf("unindex presence: %w", err)
		}
	}
	return nil
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
