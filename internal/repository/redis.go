package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"finsync/internal/config"
	"finsync/internal/events"
	"finsync/internal/scheduler"

	"github.com/redis/go-redis/v9"
)

const (
	statusKey  = "finsync:status"
	reportsKey = "finsync:reports"
)

// RedisStatusRepository persists status snapshots and a capped report list in
// redis so observers survive a process restart.
type RedisStatusRepository struct {
	client     *redis.Client
	ttl        time.Duration
	maxReports int64
}

// NewRedisClient creates a redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// Ping verifies the redis connection is alive.
func Ping(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return errors.New("redis client is nil")
	}
	return client.Ping(ctx).Err()
}

// Close releases the client's connection pool.
func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// NewRedisStatusRepository builds a repository. Snapshots expire after ttl.
func NewRedisStatusRepository(client *redis.Client, ttl time.Duration, maxReports int64) *RedisStatusRepository {
	if maxReports <= 0 {
		maxReports = 100
	}
	return &RedisStatusRepository{client: client, ttl: ttl, maxReports: maxReports}
}

func (r *RedisStatusRepository) SaveStatus(ctx context.Context, status scheduler.Status) error {
	if r.client == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	if err := r.client.Set(ctx, statusKey, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save status to redis: %w", err)
	}
	return nil
}

func (r *RedisStatusRepository) LoadStatus(ctx context.Context) (*scheduler.Status, error) {
	if r.client == nil {
		return nil, errors.New("redis client is nil")
	}
	val, err := r.client.Get(ctx, statusKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load status from redis: %w", err)
	}

	var status scheduler.Status
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	return &status, nil
}

func (r *RedisStatusRepository) PushReport(ctx context.Context, report events.SyncReportPayload) error {
	if r.client == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, reportsKey, data)
	pipe.LTrim(ctx, reportsKey, 0, r.maxReports-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push report to redis: %w", err)
	}
	return nil
}

func (r *RedisStatusRepository) RecentReports(ctx context.Context, limit int) ([]events.SyncReportPayload, error) {
	if r.client == nil {
		return nil, errors.New("redis client is nil")
	}
	if limit <= 0 {
		limit = int(r.maxReports)
	}
	vals, err := r.client.LRange(ctx, reportsKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read reports from redis: %w", err)
	}

	reports := make([]events.SyncReportPayload, 0, len(vals))
	for _, v := range vals {
		var report events.SyncReportPayload
		if err := json.Unmarshal([]byte(v), &report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}
