package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"aspos-sync/internal/config"
	"aspos-sync/internal/model"
	"aspos-sync/internal/repository"
	"aspos-sync/pkg/retry"
)

// Enqueuer accepts stage tasks.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind model.TaskKind, storeID string) (string, error)
}

// Hook is a periodic trigger that enqueues Kinds every Every.
type Hook struct {
	Name  string
	Every time.Duration
	Kinds []model.TaskKind
}

// HooksFromConfig builds the hourly and daily hooks.
func HooksFromConfig(cfg config.ScheduleConfig) ([]Hook, error) {
	hourly, err := parseKinds(cfg.HourlyKinds)
	if err != nil {
		return nil, fmt.Errorf("hourly hook: %w", err)
	}
	daily, err := parseKinds(cfg.DailyKinds)
	if err != nil {
		return nil, fmt.Errorf("daily hook: %w", err)
	}
	var hooks []Hook
	if len(hourly) > 0 {
		hooks = append(hooks, Hook{Name: "hourly", Every: time.Hour, Kinds: hourly})
	}
	if len(daily) > 0 {
		hooks = append(hooks, Hook{Name: "daily", Every: 24 * time.Hour, Kinds: daily})
	}
	return hooks, nil
}

func parseKinds(raw []string) ([]model.TaskKind, error) {
	kinds := make([]model.TaskKind, 0, len(raw))
	for _, s := range raw {
		if s == "" {
			continue
		}
		k, err := model.ParseTaskKind(s)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Scheduler fires hooks whose persisted next-run time has passed. Kinds of
// all hooks due in one check are enqueued once each, in pipeline order. When
// an enqueue fails the hook's remaining kinds are retried with backoff.
type Scheduler struct {
	hooks    []Hook
	queue    Enqueuer
	state    repository.ScheduleRepository
	interval time.Duration
	log      logrus.FieldLogger
	now      func() time.Time

	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex

	failures  map[string]int
	remaining map[string][]model.TaskKind
	backoffs  map[string]*backoff.ExponentialBackOff
}

// NewScheduler creates a scheduler that checks hooks every interval.
func NewScheduler(q Enqueuer, state repository.ScheduleRepository, hooks []Hook, interval time.Duration, log logrus.FieldLogger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		hooks:     hooks,
		queue:     q,
		state:     state,
		interval:  interval,
		log:       log.WithField("component", "scheduler"),
		now:       func() time.Time { return time.Now().UTC() },
		stopCh:    make(chan struct{}),
		failures:  make(map[string]int),
		remaining: make(map[string][]model.TaskKind),
		backoffs:  make(map[string]*backoff.ExponentialBackOff),
	}
}

// Start begins checking hooks.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.interval)
	s.mu.Unlock()

	names := make([]string, len(s.hooks))
	for i, h := range s.hooks {
		names[i] = h.Name
	}
	s.log.WithFields(logrus.Fields{"interval": s.interval, "hooks": names}).Info("scheduler started")

	go s.run()
}

func (s *Scheduler) run() {
	s.check()
	for {
		select {
		case <-s.ticker.C:
			s.check()
		case <-s.stopCh:
			s.log.Info("scheduler stopped")
			return
		}
	}
}

func (s *Scheduler) check() {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithFields(logrus.Fields{
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("schedule check panicked")
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.Tick(ctx); err != nil {
		s.log.WithError(err).Error("schedule check failed")
	}
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}

type dueHook struct {
	Hook
	next  time.Time
	kinds []model.TaskKind
}

// Tick fires every due hook once and returns the names of hooks whose
// tasks were all enqueued.
func (s *Scheduler) Tick(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var errs []error
	var due []dueHook
	for _, h := range s.hooks {
		next, err := s.state.NextRun(ctx, h.Name)
		if err != nil {
			errs = append(errs, fmt.Errorf("hook %s: %w", h.Name, err))
			continue
		}
		if !next.IsZero() && now.Before(next) {
			continue
		}
		kinds, retrying := s.remaining[h.Name]
		if !retrying {
			kinds = h.Kinds
		}
		due = append(due, dueHook{Hook: h, next: next, kinds: kinds})
	}
	if len(due) == 0 {
		return nil, errors.Join(errs...)
	}

	wanted := make(map[model.TaskKind]bool)
	for _, d := range due {
		for _, k := range d.kinds {
			wanted[k] = true
		}
	}
	enqueued := make(map[model.TaskKind]bool, len(wanted))
	var failedKind model.TaskKind
	var enqErr error
	for _, kind := range model.PipelineOrder {
		if !wanted[kind] {
			continue
		}
		if _, err := s.queue.Enqueue(ctx, kind, ""); err != nil {
			failedKind, enqErr = kind, err
			break
		}
		enqueued[kind] = true
	}

	var fired []string
	for _, d := range due {
		var left []model.TaskKind
		for _, k := range d.kinds {
			if !enqueued[k] {
				left = append(left, k)
			}
		}
		if len(left) > 0 {
			if err := s.retryLater(ctx, d.Hook, left, now, failedKind, enqErr); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		fired = append(fired, d.Name)
		if err := s.advance(ctx, d, now); err != nil {
			errs = append(errs, err)
		}
	}
	return fired, errors.Join(errs...)
}

func (s *Scheduler) retryLater(ctx context.Context, h Hook, left []model.TaskKind, now time.Time, kind model.TaskKind, cause error) error {
	b, ok := s.backoffs[h.Name]
	if !ok {
		b = retry.Doubling(s.interval, h.Every)
		s.backoffs[h.Name] = b
	}
	s.failures[h.Name]++
	s.remaining[h.Name] = left
	delay := b.NextBackOff()

	s.log.WithError(cause).WithFields(logrus.Fields{
		"hook":    h.Name,
		"kind":    kind,
		"attempt": s.failures[h.Name],
		"retry":   delay,
	}).Warn("hook enqueue failed")
	return s.state.SetNextRun(ctx, h.Name, now.Add(delay))
}

func (s *Scheduler) advance(ctx context.Context, d dueHook, now time.Time) error {
	delete(s.failures, d.Name)
	delete(s.remaining, d.Name)
	delete(s.backoffs, d.Name)

	// Advance from the stored time so a late check does not shift the cadence.
	next := d.next
	if next.IsZero() {
		next = now
	}
	for !next.After(now) {
		next = next.Add(d.Every)
	}
	if err := s.state.SetNextRun(ctx, d.Name, next); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"hook":     d.Name,
		"kinds":    d.kinds,
		"next_run": next.Format(time.RFC3339),
	}).Info("hook fired")
	return nil
}
