package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisMirror writes session snapshots to Redis so external dashboards can
// observe runs without touching the in-process store. Snapshots expire on
// their own; the core never reads them back.
type RedisMirror struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisMirror connects to Redis and returns a mirror. The connection is
// verified up front so a misconfigured address fails at startup, not
// mid-run.
func NewRedisMirror(addr string, ttl time.Duration, logger *zap.Logger) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisMirror{client: client, ttl: ttl, logger: logger}, nil
}

// Save marshals the session and writes it under orchestration:session:<id>
func (m *RedisMirror) Save(ctx context.Context, sess *ExecutionSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	key := m.sessionKey(sess.ID)
	if err := m.client.Set(ctx, key, data, m.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write session snapshot: %w", err)
	}
	return nil
}

// Close releases the Redis connection
func (m *RedisMirror) Close() error {
	return m.client.Close()
}

func (m *RedisMirror) sessionKey(id string) string {
	return fmt.Sprintf("orchestration:session:%s", id)
}
