package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/juniperhq/valet/internal/fault"
)

// TaskStatus is the closed set of task states. The registry schema
// advertises the same values, so the orchestrator cannot pick anything
// outside it, and the store re-validates on its own boundary anyway.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
)

// ValidStatus reports whether s is a member of the status enum.
func ValidStatus(s TaskStatus) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDone:
		return true
	}
	return false
}

type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TaskUpdate carries the fields update may merge. Nil means "leave as is".
// id and created_at are not representable here on purpose.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *TaskStatus
}

// CreateTask inserts a new task with status pending and returns it.
func (s *Store) CreateTask(ctx context.Context, title, description string) (Task, error) {
	if title == "" {
		return Task{}, fault.New(fault.KindValidation, "task title is required")
	}
	now := s.now().UTC()
	task := Task{Title: title, Description: description, Status: StatusPending, CreatedAt: now, UpdatedAt: now}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (title, description, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?);
		`, task.Title, task.Description, task.Status, now, now)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		task.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("task id: %w", err)
		}
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	return task, nil
}

// GetTask loads one task by id.
func (s *Store) GetTask(ctx context.Context, id int64) (Task, error) {
	var t Task
	err := s.read(ctx, func() error {
		err := s.db.QueryRowContext(ctx, `
			SELECT id, title, description, status, created_at, updated_at
			FROM tasks WHERE id = ?;
		`, id).Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.CreatedAt, &t.UpdatedAt)
		if err == sql.ErrNoRows {
			return fault.New(fault.KindNotFound, "task %d not found", id)
		}
		if err != nil {
			return fmt.Errorf("get task: %w", err)
		}
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

// ListTasks returns tasks ordered by created_at ascending. An empty
// status lists everything.
func (s *Store) ListTasks(ctx context.Context, status TaskStatus) ([]Task, error) {
	query := `
		SELECT id, title, description, status, created_at, updated_at
		FROM tasks ORDER BY created_at ASC, id ASC;`
	args := []any{}
	if status != "" {
		if !ValidStatus(status) {
			return nil, fault.New(fault.KindValidation, "invalid task status %q", status)
		}
		query = `
		SELECT id, title, description, status, created_at, updated_at
		FROM tasks WHERE status = ? ORDER BY created_at ASC, id ASC;`
		args = append(args, status)
	}

	var out []Task
	err := s.read(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var t Task
			if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
				return fmt.Errorf("scan task: %w", err)
			}
			out = append(out, t)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("task rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateTask merges the provided fields into an existing task and bumps
// updated_at. The bump is strictly monotonic even within one clock tick.
func (s *Store) UpdateTask(ctx context.Context, id int64, upd TaskUpdate) (Task, error) {
	if upd.Title == nil && upd.Description == nil && upd.Status == nil {
		return Task{}, fault.New(fault.KindValidation, "no fields to update")
	}
	if upd.Title != nil && *upd.Title == "" {
		return Task{}, fault.New(fault.KindValidation, "task title cannot be empty")
	}
	if upd.Status != nil && !ValidStatus(*upd.Status) {
		return Task{}, fault.New(fault.KindValidation, "invalid task status %q", *upd.Status)
	}

	var out Task
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var t Task
		err := tx.QueryRowContext(ctx, `
			SELECT id, title, description, status, created_at, updated_at
			FROM tasks WHERE id = ?;
		`, id).Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.CreatedAt, &t.UpdatedAt)
		if err == sql.ErrNoRows {
			return fault.New(fault.KindNotFound, "task %d not found", id)
		}
		if err != nil {
			return fmt.Errorf("load task: %w", err)
		}

		if upd.Title != nil {
			t.Title = *upd.Title
		}
		if upd.Description != nil {
			t.Description = *upd.Description
		}
		if upd.Status != nil {
			t.Status = *upd.Status
		}
		now := s.now().UTC()
		if !now.After(t.UpdatedAt) {
			now = t.UpdatedAt.Add(time.Microsecond)
		}
		t.UpdatedAt = now

		if _, err := tx.ExecContext(ctx, `
			UPDATE tasks SET title = ?, description = ?, status = ?, updated_at = ?
			WHERE id = ?;
		`, t.Title, t.Description, t.Status, t.UpdatedAt, t.ID); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		out = t
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	return out, nil
}

// DeleteTask removes a task. Deleting an absent id is not an error; the
// bool reports whether a row existed.
func (s *Store) DeleteTask(ctx context.Context, id int64) (bool, error) {
	var existed bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?;`, id)
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete task rows: %w", err)
		}
		existed = n > 0
		return nil
	})
	return existed, err
}

// CountTasks returns the total row count; used by tests and retention.
func (s *Store) CountTasks(ctx context.Context) (int64, error) {
	var n int64
	err := s.read(ctx, func() error {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM tasks;`).Scan(&n); err != nil {
			return fmt.Errorf("count tasks: %w", err)
		}
		return nil
	})
	return n, err
}

// PruneDoneTasks deletes done tasks whose updated_at is older than
// cutoff. Returns the number removed.
func (s *Store) PruneDoneTasks(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM tasks WHERE status = ? AND updated_at < ?;
		`, StatusDone, cutoff.UTC())
		if err != nil {
			return fmt.Errorf("prune done tasks: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}
