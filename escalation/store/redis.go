package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	cfgpkg "github.com/sweetpotato0/ticketpilot/config"
	"github.com/sweetpotato0/ticketpilot/escalation"
)

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string // Redis server address (e.g., "localhost:6379")
	Password string // Redis password (if any)
	DB       int    // Redis database number
	Prefix   string // Key prefix for namespacing
}

// RedisLog implements the escalation log on Redis. Each record is one JSON
// value pushed onto a list, so appends are atomic per record.
type RedisLog struct {
	client *redis.Client
	key    string
}

// NewRedisLog creates a new Redis-backed escalation log.
func NewRedisLog(config *RedisConfig) (*RedisLog, error) {
	if config == nil {
		config = &RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "ticketpilot:",
		}
	}
	if err := cfgpkg.ValidateRedisConfig(config.Addr, config.DB); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	prefix := config.Prefix
	if prefix == "" {
		prefix = "ticketpilot:"
	}

	return &RedisLog{
		client: client,
		key:    fmt.Sprintf("%sescalations", prefix),
	}, nil
}

// Append pushes one escalation record onto the log list.
func (l *RedisLog) Append(ctx context.Context, record escalation.Record) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal escalation: %w", err)
	}

	if err := l.client.RPush(ctx, l.key, data).Err(); err != nil {
		return fmt.Errorf("failed to append escalation to Redis: %w", err)
	}
	return nil
}

// List returns all records sorted by timestamp ascending.
func (l *RedisLog) List(ctx context.Context) ([]escalation.Record, error) {
	values, err := l.client.LRange(ctx, l.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read escalations: %w", err)
	}

	records := make([]escalation.Record, 0, len(values))
	for _, value := range values {
		var rec escalation.Record
		if err := json.Unmarshal([]byte(value), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal escalation: %w", err)
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

// Count returns the number of records in the log.
func (l *RedisLog) Count(ctx context.Context) (int, error) {
	count, err := l.client.LLen(ctx, l.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count escalations: %w", err)
	}
	return int(count), nil
}

// Close closes the Redis connection
func (l *RedisLog) Close() error {
	return l.client.Close()
}

// Ping checks if Redis connection is alive
func (l *RedisLog) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
