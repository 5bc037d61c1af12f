package queue

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
	"aspos-sync/pkg/retry"
	"aspos-sync/pkg/uid"
)

// ErrStopped is returned by ProcessNext and Exclusive after Stop.
var ErrStopped = errors.New("queue: stopped")

// Dispatcher runs one task.
type Dispatcher interface {
	Dispatch(ctx context.Context, task model.SyncTask) error
}

// Processed describes one ProcessNext call that popped a task.
type Processed struct {
	Task     model.SyncTask `json:"task"`
	Error    string         `json:"error,omitempty"`
	Requeued bool           `json:"requeued"`
	Err      error          `json:"-"`
}

// Queue drains tasks one per trigger. A trigger fires InitialDelay after an
// enqueue and ContinueDelay after each processed task while work remains.
type Queue struct {
	store    Store
	lease    Lease
	dispatch Dispatcher
	cfg      config.QueueConfig
	log      logrus.FieldLogger

	mu          sync.Mutex
	timer       *time.Timer
	pending     bool
	busy        *backoff.ExponentialBackOff
	busyRetries int
	closed      bool
	current     *model.SyncTask
	inflight    sync.WaitGroup
}

// New creates a queue. Nothing is drained until a task is enqueued or
// Resume is called.
func New(store Store, lease Lease, d Dispatcher, cfg config.QueueConfig, log logrus.FieldLogger) *Queue {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 30 * time.Minute
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Queue{
		store:    store,
		lease:    lease,
		dispatch: d,
		cfg:      cfg,
		log:      log.WithField("component", "queue"),
		busy:     retry.Doubling(cfg.InitialDelay, cfg.LeaseTTL),
	}
}

// Enqueue appends a task and schedules a drain unless one is pending.
func (q *Queue) Enqueue(ctx context.Context, kind model.TaskKind, storeID string) (string, error) {
	if _, err := model.ParseTaskKind(string(kind)); err != nil {
		return "", err
	}
	task := model.SyncTask{
		ID:          uid.NewOrdered(),
		Kind:        kind,
		StoreID:     storeID,
		SubmittedAt: time.Now().UTC(),
		Status:      model.TaskPending,
	}
	if err := q.store.Push(ctx, task); err != nil {
		return "", err
	}
	q.log.WithFields(logrus.Fields{"task_id": task.ID, "kind": kind, "store_id": storeID}).Info("task enqueued")
	q.schedule(q.cfg.InitialDelay)
	return task.ID, nil
}

// EnqueueAll enqueues every stage for all stores in pipeline order.
func (q *Queue) EnqueueAll(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(model.PipelineOrder))
	for _, kind := range model.PipelineOrder {
		id, err := q.Enqueue(ctx, kind, "")
		if err != nil {
			return ids, fmt.Errorf("failed to enqueue %s: %w", kind, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ProcessNext pops and dispatches exactly one task. It returns nil when the
// queue is empty and ErrBusy when another drain holds the lease. A failed
// or panicking task is dropped once it has used MaxAttempts, otherwise
// re-queued at the tail.
func (q *Queue) ProcessNext(ctx context.Context) (*Processed, error) {
	var out *Processed
	err := q.Exclusive(ctx, func(ctx context.Context) error {
		var err error
		out, err = q.processNext(ctx)
		return err
	})
	return out, err
}

// Exclusive runs fn while holding the drain lease, so it never overlaps a
// queued task or another Exclusive call. Stop waits for fn to return.
func (q *Queue) Exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	if !q.enter() {
		return ErrStopped
	}
	defer q.inflight.Done()

	token, ok, err := q.lease.Acquire(ctx, q.cfg.LeaseTTL)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBusy
	}
	defer func() {
		if err := q.lease.Release(context.Background(), token); err != nil {
			q.log.WithError(err).Warn("lease release failed")
		}
	}()
	return fn(ctx)
}

func (q *Queue) processNext(ctx context.Context) (*Processed, error) {
	task, err := q.store.Pop(ctx)
	if err != nil || task == nil {
		return nil, err
	}

	task.Status = model.TaskInProgress
	task.Attempts++
	q.setCurrent(task)
	defer q.setCurrent(nil)

	entry := q.log.WithFields(logrus.Fields{
		"task_id":  task.ID,
		"kind":     task.Kind,
		"store_id": task.StoreID,
		"attempt":  task.Attempts,
	})
	entry.Info("task started")

	runCtx := ctx
	if q.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, q.cfg.TaskTimeout)
		defer cancel()
	}
	derr := q.run(runCtx, *task, entry)

	out := &Processed{Task: *task, Err: derr}
	if derr == nil {
		entry.Info("task finished")
		return out, nil
	}
	out.Error = derr.Error()

	if task.Attempts >= q.cfg.MaxAttempts {
		entry.WithError(derr).Error("task failed, dropped")
		return out, nil
	}
	next := *task
	next.Status = model.TaskPending
	if err := q.store.Push(context.Background(), next); err != nil {
		entry.WithError(err).Error("task failed, re-queue failed")
		return out, nil
	}
	out.Requeued = true
	entry.WithError(derr).Warn("task failed, re-queued")
	return out, nil
}

// run dispatches task and turns a panic into a task error.
func (q *Queue) run(ctx context.Context, task model.SyncTask, entry logrus.FieldLogger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			entry.WithFields(logrus.Fields{
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("task panicked")
			err = fmt.Errorf("%s task panicked: %v", task.Kind, r)
		}
	}()
	return q.dispatch.Dispatch(ctx, task)
}

// List returns the running task, if any, followed by the pending ones.
func (q *Queue) List(ctx context.Context) ([]model.SyncTask, error) {
	tasks, err := q.store.List(ctx)
	if err != nil {
		return nil, err
	}
	q.mu.Lock()
	cur := q.current
	q.mu.Unlock()
	if cur != nil {
		tasks = append([]model.SyncTask{*cur}, tasks...)
	}
	return tasks, nil
}

// Resume schedules a drain if tasks survived a restart.
func (q *Queue) Resume(ctx context.Context) error {
	n, err := q.store.Len(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		q.log.WithField("pending", n).Info("resuming queue")
		q.schedule(q.cfg.InitialDelay)
	}
	return nil
}

// Pending reports whether a drain trigger is scheduled.
func (q *Queue) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Stop cancels the scheduled trigger and waits for a running task or
// Exclusive call to return. A running task is not interrupted.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.closed = true
	q.pending = false
	if q.timer != nil {
		q.timer.Stop()
	}
	q.mu.Unlock()
	q.inflight.Wait()
}

func (q *Queue) enter() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.inflight.Add(1)
	return true
}

func (q *Queue) setCurrent(t *model.SyncTask) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t == nil {
		q.current = nil
		return
	}
	cp := *t
	q.current = &cp
}

func (q *Queue) schedule(d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending || q.closed {
		return
	}
	q.pending = true
	q.timer = time.AfterFunc(d, q.trigger)
}

func (q *Queue) trigger() {
	q.mu.Lock()
	q.pending = false
	q.mu.Unlock()
	if !q.enter() {
		return
	}
	defer q.inflight.Done()

	defer func() {
		if r := recover(); r != nil {
			q.log.WithFields(logrus.Fields{
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("queue drain panicked")
		}
	}()

	ctx := context.Background()
	_, err := q.ProcessNext(ctx)
	switch {
	case errors.Is(err, ErrStopped):
		return
	case errors.Is(err, ErrBusy):
		q.mu.Lock()
		q.busyRetries++
		n := q.busyRetries
		delay := q.busy.NextBackOff()
		q.mu.Unlock()
		q.log.WithFields(logrus.Fields{"retry": n, "delay": delay}).Warn("queue busy, retrying")
		q.schedule(delay)
		return
	}

	q.mu.Lock()
	q.busyRetries = 0
	q.busy.Reset()
	q.mu.Unlock()
	if err != nil {
		q.log.WithError(err).Error("queue drain failed")
	}

	n, err := q.store.Len(ctx)
	if err != nil {
		q.log.WithError(err).Error("queue length check failed")
		return
	}
	if n > 0 {
		q.schedule(q.cfg.ContinueDelay)
	}
}
