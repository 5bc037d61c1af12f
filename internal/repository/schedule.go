package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ScheduleRepository persists the next-run time of each periodic hook so
// restarts do not fire or skip a run early.
type ScheduleRepository interface {
	// NextRun returns the stored time, or the zero time if never scheduled.
	NextRun(ctx context.Context, hook string) (time.Time, error)

	// SetNextRun stores t for hook.
	SetNextRun(ctx context.Context, hook string, t time.Time) error
}

// SQLScheduleRepository keeps hook timestamps in sync_schedule.
type SQLScheduleRepository struct {
	db     *DB
	upsert string
}

// NewSQLScheduleRepository creates a schedule store on db.
func NewSQLScheduleRepository(db *DB) *SQLScheduleRepository {
	cols := []string{"hook", "next_run"}
	return &SQLScheduleRepository{
		db:     db,
		upsert: db.Rebind(db.Dialect.Upsert("sync_schedule", cols, cols[:1], cols[1:])),
	}
}

// NextRun returns the stored time for hook.
func (r *SQLScheduleRepository) NextRun(ctx context.Context, hook string) (time.Time, error) {
	var t sql.NullTime
	err := r.db.GetContext(ctx, &t, r.db.Rebind(`SELECT next_run FROM sync_schedule WHERE hook = ?`), hook)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read schedule %s: %w", hook, err)
	}
	return t.Time, nil
}

// SetNextRun stores t for hook.
func (r *SQLScheduleRepository) SetNextRun(ctx context.Context, hook string, t time.Time) error {
	if _, err := r.db.ExecContext(ctx, r.upsert, hook, t.UTC()); err != nil {
		return fmt.Errorf("failed to write schedule %s: %w", hook, err)
	}
	return nil
}

// RedisScheduleRepository keeps hook timestamps in one Redis hash.
type RedisScheduleRepository struct {
	client *redis.Client
	key    string
}

// NewRedisScheduleRepository creates a schedule store under keyPrefix.
func NewRedisScheduleRepository(client *redis.Client, keyPrefix string) *RedisScheduleRepository {
	return &RedisScheduleRepository{client: client, key: keyPrefix + ":schedule"}
}

// NextRun returns the stored time for hook.
func (r *RedisScheduleRepository) NextRun(ctx context.Context, hook string) (time.Time, error) {
	v, err := r.client.HGet(ctx, r.key, hook).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read schedule %s: %w", hook, err)
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule %s value %q", hook, v)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// SetNextRun stores t for hook.
func (r *RedisScheduleRepository) SetNextRun(ctx context.Context, hook string, t time.Time) error {
	if err := r.client.HSet(ctx, r.key, hook, t.UnixMilli()).Err(); err != nil {
		return fmt.Errorf("failed to write schedule %s: %w", hook, err)
	}
	return nil
}

var (
	_ ScheduleRepository = (*SQLScheduleRepository)(nil)
	_ ScheduleRepository = (*RedisScheduleRepository)(nil)
)
