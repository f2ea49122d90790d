package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/juniperhq/valet/internal/fault"
)

// Note is append-only: created once, deleted at most once, never updated.
type Note struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateNote inserts a new note and returns it.
func (s *Store) CreateNote(ctx context.Context, title, content string) (Note, error) {
	if title == "" {
		return Note{}, fault.New(fault.KindValidation, "note title is required")
	}
	now := s.now().UTC()
	note := Note{Title: title, Content: content, CreatedAt: now}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO notes (title, content, created_at) VALUES (?, ?, ?);
		`, note.Title, note.Content, now)
		if err != nil {
			return fmt.Errorf("insert note: %w", err)
		}
		note.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("note id: %w", err)
		}
		return nil
	})
	if err != nil {
		return Note{}, err
	}
	return note, nil
}

// ListNotes returns notes ordered by created_at ascending. A non-empty
// keyword does a LIKE match against title and content.
func (s *Store) ListNotes(ctx context.Context, keyword string) ([]Note, error) {
	query := `SELECT id, title, content, created_at FROM notes ORDER BY created_at ASC, id ASC;`
	args := []any{}
	if keyword != "" {
		query = `
			SELECT id, title, content, created_at FROM notes
			WHERE title LIKE ? OR content LIKE ?
			ORDER BY created_at ASC, id ASC;`
		pattern := "%" + keyword + "%"
		args = append(args, pattern, pattern)
	}

	var out []Note
	err := s.read(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("list notes: %w", err)
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var n Note
			if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.CreatedAt); err != nil {
				return fmt.Errorf("scan note: %w", err)
			}
			out = append(out, n)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("note rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetNote loads one note by id.
func (s *Store) GetNote(ctx context.Context, id int64) (Note, error) {
	var n Note
	err := s.read(ctx, func() error {
		err := s.db.QueryRowContext(ctx, `
			SELECT id, title, content, created_at FROM notes WHERE id = ?;
		`, id).Scan(&n.ID, &n.Title, &n.Content, &n.CreatedAt)
		if err == sql.ErrNoRows {
			return fault.New(fault.KindNotFound, "note %d not found", id)
		}
		if err != nil {
			return fmt.Errorf("get note: %w", err)
		}
		return nil
	})
	if err != nil {
		return Note{}, err
	}
	return n, nil
}

// DeleteNote removes a note, idempotently.
func (s *Store) DeleteNote(ctx context.Context, id int64) (bool, error) {
	var existed bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?;`, id)
		if err != nil {
			return fmt.Errorf("delete note: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete note rows: %w", err)
		}
		existed = n > 0
		return nil
	})
	return existed, err
}
