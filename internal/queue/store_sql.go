package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"aspos-sync/internal/model"
	"aspos-sync/internal/repository"
)

// SQLStore keeps tasks in the sync_tasks table ordered by insertion.
type SQLStore struct {
	db *repository.DB
}

// NewSQLStore creates a store on db.
func NewSQLStore(db *repository.DB) *SQLStore {
	return &SQLStore{db: db}
}

type taskRow struct {
	Seq         int64          `db:"seq"`
	ID          string         `db:"id"`
	Kind        string         `db:"kind"`
	StoreID     sql.NullString `db:"store_id"`
	SubmittedAt sql.NullTime   `db:"submitted_at"`
	Attempts    int            `db:"attempts"`
}

func (r taskRow) toModel() model.SyncTask {
	return model.SyncTask{
		ID:          r.ID,
		Kind:        model.TaskKind(r.Kind),
		StoreID:     r.StoreID.String,
		SubmittedAt: r.SubmittedAt.Time,
		Status:      model.TaskPending,
		Attempts:    r.Attempts,
	}
}

const selectTasks = `SELECT seq, id, kind, store_id, submitted_at, attempts FROM sync_tasks`

// Push appends task.
func (s *SQLStore) Push(ctx context.Context, task model.SyncTask) error {
	if task.SubmittedAt.IsZero() {
		task.SubmittedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO sync_tasks (id, kind, store_id, submitted_at, attempts) VALUES (?, ?, ?, ?, ?)`),
		task.ID, string(task.Kind), task.StoreID, task.SubmittedAt.UTC(), task.Attempts)
	if err != nil {
		return fmt.Errorf("failed to push task: %w", err)
	}
	return nil
}

// Pop removes the head task inside a transaction.
func (s *SQLStore) Pop(ctx context.Context) (*model.SyncTask, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var row taskRow
	err = tx.GetContext(ctx, &row, selectTasks+` ORDER BY seq LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read head task: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM sync_tasks WHERE seq = ?`), row.Seq); err != nil {
		return nil, fmt.Errorf("failed to remove head task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	task := row.toModel()
	return &task, nil
}

// List returns the pending tasks head first.
func (s *SQLStore) List(ctx context.Context) ([]model.SyncTask, error) {
	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, selectTasks+` ORDER BY seq`); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	tasks := make([]model.SyncTask, len(rows))
	for i, r := range rows {
		tasks[i] = r.toModel()
	}
	return tasks, nil
}

// Len returns the number of pending tasks.
func (s *SQLStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM sync_tasks`); err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return n, nil
}

var _ Store = (*SQLStore)(nil)
