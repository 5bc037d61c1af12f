package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aspos-sync/internal/config"
	"aspos-sync/internal/logger"
	"aspos-sync/internal/model"
	"aspos-sync/internal/repository"
)

type enqueueRecorder struct {
	kinds   []model.TaskKind
	failFor map[model.TaskKind]bool
}

func (r *enqueueRecorder) Enqueue(_ context.Context, kind model.TaskKind, _ string) (string, error) {
	if r.failFor[kind] {
		return "", errors.New("queue unavailable")
	}
	r.kinds = append(r.kinds, kind)
	return "id-" + string(kind), nil
}

func newTestScheduler(t *testing.T, q Enqueuer) (*Scheduler, repository.ScheduleRepository, *time.Time) {
	t.Helper()
	db, err := repository.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	hooks, err := HooksFromConfig(config.ScheduleConfig{
		HourlyKinds: []string{"inventory", "prices"},
		DailyKinds:  []string{"stores", "products"},
	})
	require.NoError(t, err)

	state := repository.NewSQLScheduleRepository(db)
	s := NewScheduler(q, state, hooks, time.Minute, logger.Nop())
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, state, &now
}

func TestHooksFromConfigRejectsUnknownKind(t *testing.T) {
	_, err := HooksFromConfig(config.ScheduleConfig{HourlyKinds: []string{"orders"}})
	assert.Error(t, err)

	hooks, err := HooksFromConfig(config.ScheduleConfig{DailyKinds: []string{"stores"}})
	require.NoError(t, err)
	require.Len(t, hooks, 1)
	assert.Equal(t, "daily", hooks[0].Name)
}

func TestSchedulerFiresDueHooksOnce(t *testing.T) {
	ctx := context.Background()
	rec := &enqueueRecorder{}
	s, state, now := newTestScheduler(t, rec)

	fired, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hourly", "daily"}, fired)
	assert.Equal(t, model.PipelineOrder, rec.kinds, "hooks due together are enqueued in pipeline order")

	fired, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Empty(t, fired)

	next, err := state.NextRun(ctx, "hourly")
	require.NoError(t, err)
	assert.True(t, next.Equal(now.Add(time.Hour)))

	*now = now.Add(61 * time.Minute)
	fired, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hourly"}, fired)

	next, err = state.NextRun(ctx, "hourly")
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)), "cadence stays on the hour: %v", next)
}

func TestSchedulerUsesPersistedNextRun(t *testing.T) {
	ctx := context.Background()
	rec := &enqueueRecorder{}
	s, state, now := newTestScheduler(t, rec)

	require.NoError(t, state.SetNextRun(ctx, "hourly", now.Add(30*time.Minute)))
	require.NoError(t, state.SetNextRun(ctx, "daily", now.Add(5*time.Hour)))

	fired, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Empty(t, fired)
	assert.Empty(t, rec.kinds)
}

func TestSchedulerRetriesFailedEnqueueWithBackoff(t *testing.T) {
	ctx := context.Background()
	rec := &enqueueRecorder{failFor: map[model.TaskKind]bool{model.KindPrices: true}}
	s, state, now := newTestScheduler(t, rec)
	s.hooks = s.hooks[:1]
	start := *now

	fired, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Empty(t, fired)
	assert.Equal(t, []model.TaskKind{model.KindInventory}, rec.kinds)

	next, err := state.NextRun(ctx, "hourly")
	require.NoError(t, err)
	assert.True(t, next.Equal(start.Add(time.Minute)))

	*now = start.Add(time.Minute)
	_, err = s.Tick(ctx)
	require.NoError(t, err)
	next, err = state.NextRun(ctx, "hourly")
	require.NoError(t, err)
	assert.True(t, next.Equal(now.Add(2*time.Minute)), "second failure doubles the delay")

	rec.failFor = nil
	*now = next
	fired, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hourly"}, fired)
	assert.Equal(t, []model.TaskKind{model.KindInventory, model.KindPrices}, rec.kinds, "only the kinds left over are retried")
}

func TestSchedulerBackoffIsCapped(t *testing.T) {
	ctx := context.Background()
	rec := &enqueueRecorder{failFor: map[model.TaskKind]bool{model.KindStores: true}}
	s, state, now := newTestScheduler(t, rec)
	s.hooks = []Hook{{Name: "fast", Every: 5 * time.Minute, Kinds: []model.TaskKind{model.KindStores}}}

	var delays []time.Duration
	for i := 0; i < 5; i++ {
		_, err := s.Tick(ctx)
		require.NoError(t, err)
		next, err := state.NextRun(ctx, "fast")
		require.NoError(t, err)
		delays = append(delays, next.Sub(*now))
		*now = next
	}
	assert.Equal(t, []time.Duration{time.Minute, 2 * time.Minute, 4 * time.Minute, 5 * time.Minute, 5 * time.Minute}, delays)

	rec.failFor = nil
	fired, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fast"}, fired)

	rec.failFor = map[model.TaskKind]bool{model.KindStores: true}
	*now = now.Add(5 * time.Minute)
	_, err = s.Tick(ctx)
	require.NoError(t, err)
	next, err := state.NextRun(ctx, "fast")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, next.Sub(*now), "success resets the backoff")
}

func TestSchedulerMergesOverlappingHooks(t *testing.T) {
	ctx := context.Background()
	rec := &enqueueRecorder{}
	s, _, _ := newTestScheduler(t, rec)
	s.hooks = []Hook{
		{Name: "hourly", Every: time.Hour, Kinds: []model.TaskKind{model.KindPrices, model.KindInventory}},
		{Name: "daily", Every: 24 * time.Hour, Kinds: []model.TaskKind{model.KindInventory, model.KindStores}},
	}

	fired, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hourly", "daily"}, fired)
	assert.Equal(t, []model.TaskKind{model.KindStores, model.KindInventory, model.KindPrices}, rec.kinds)
}

func TestSchedulerCheckRecoversFromPanic(t *testing.T) {
	s, _, _ := newTestScheduler(t, panickingEnqueuer{})
	assert.NotPanics(t, s.check)
}

type panickingEnqueuer struct{}

func (panickingEnqueuer) Enqueue(context.Context, model.TaskKind, string) (string, error) {
	panic("enqueue bug")
}
