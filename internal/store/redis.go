// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ManuGH/loopcast/internal/job"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string // Redis server address (host:port)
	Password string // Redis password (optional)
	DB       int    // Redis database number
	Prefix   string // key prefix, defaults to "loopcast:"
}

// RedisStore keeps the snapshot in one hash: field id, value JSON.
type RedisStore struct {
	client *redis.Client
	key    string
}

// OpenRedis connects and pings the server.
func OpenRedis(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, persistErr("redis connect "+cfg.Addr, err)
	}
	return NewRedisStore(client, cfg.Prefix), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "loopcast:"
	}
	return &RedisStore{client: client, key: prefix + "jobs"}
}

func (s *RedisStore) Load(ctx context.Context) (map[string]job.Persisted, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, persistErr("redis hgetall", err)
	}
	out := make(map[string]job.Persisted, len(fields))
	for id, raw := range fields {
		var p job.Persisted
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, persistErr("decode job "+id, err)
		}
		p.ID = id
		out[id] = p
	}
	return out, nil
}

// Save swaps the hash contents inside MULTI/EXEC.
func (s *RedisStore) Save(ctx context.Context, jobs map[string]job.Persisted) error {
	values := make([]any, 0, len(jobs)*2)
	for id, p := range jobs {
		data, err := json.Marshal(p)
		if err != nil {
			return persistErr("encode job "+id, err)
		}
		values = append(values, id, string(data))
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(values) > 0 {
			pipe.HSet(ctx, s.key, values...)
		}
		return nil
	})
	if err != nil {
		return persistErr("redis save", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error { return s.client.Close() }
