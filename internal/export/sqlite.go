// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	_ "modernc.org/sqlite"

	"github.com/relabs-tech/fatigue_computer/internal/segment"
)

// DB keeps every session's outputs in one SQLite file.
type DB struct {
	db *sql.DB
}

// OpenDB opens (creating if needed) the database at path and runs
// migrations. ":memory:" opens a private in-memory database.
func OpenDB(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one connection keeps an in-memory database alive and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error { return d.db.Close() }

// columnIdent turns a display column name into a SQL identifier.
// "Wrist Gyroscope X (deg/s)" becomes "wrist_gyroscope_x_deg_s".
func columnIdent(name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func valueColumns() []string {
	cols := Columns()
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = columnIdent(c)
	}
	return out
}

func migrate(db *sql.DB) error {
	var sampleCols strings.Builder
	for _, c := range valueColumns() {
		fmt.Fprintf(&sampleCols, ",\n\t\t\t%s REAL", c)
	}
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			written_at TEXT,
			raw_samples INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS samples (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			sample_index INTEGER NOT NULL,
			wall_time TEXT NOT NULL,
			offset_ms REAL NOT NULL` + sampleCols.String() + `,
			PRIMARY KEY (session_id, sample_index)
		)`,

		`CREATE TABLE IF NOT EXISTS repetitions (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			start_index INTEGER NOT NULL,
			end_index INTEGER NOT NULL,
			PRIMARY KEY (session_id, seq)
		)`,

		`CREATE TABLE IF NOT EXISTS predictions (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			score REAL NOT NULL,
			PRIMARY KEY (session_id, seq)
		)`,
	}
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// SessionWriter writes one session's outputs. Each write replaces whatever
// the session already stored for that table, so a retried write is safe.
type SessionWriter struct {
	db        *DB
	id        string
	startedAt time.Time
}

// Session returns a writer for the session with the given id.
func (d *DB) Session(id string, startedAt time.Time) *SessionWriter {
	return &SessionWriter{db: d, id: id, startedAt: startedAt}
}

func (w *SessionWriter) ensureSession(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		w.id, w.startedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (w *SessionWriter) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := w.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := w.ensureSession(ctx, tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// WriteSamples stores the sample table. Invalid cells are stored as NULL.
func (w *SessionWriter) WriteSamples(ctx context.Context, t SampleTable) error {
	cols := valueColumns()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)+4), ", ")
	insert := fmt.Sprintf(
		`INSERT INTO samples (session_id, sample_index, wall_time, offset_ms, %s) VALUES (%s)`,
		strings.Join(cols, ", "), placeholders)

	return w.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM samples WHERE session_id = ?`, w.id); err != nil {
			return fmt.Errorf("clear samples: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return fmt.Errorf("prepare samples: %w", err)
		}
		defer stmt.Close()

		args := make([]any, len(cols)+4)
		for _, r := range t.Rows {
			if len(r.Cells) != len(cols) {
				return fmt.Errorf("row %d has %d cells, want %d", r.Index, len(r.Cells), len(cols))
			}
			args[0], args[1] = w.id, r.Index
			args[2] = r.At.UTC().Format(time.RFC3339Nano)
			args[3] = r.OffsetMS()
			for i, c := range r.Cells {
				if c.Valid {
					args[4+i] = c.Value
				} else {
					args[4+i] = nil
				}
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("insert sample %d: %w", r.Index, err)
			}
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE sessions SET written_at = ?, raw_samples = ? WHERE id = ?`,
			time.Now().UTC().Format(time.RFC3339Nano), t.Raw, w.id)
		return err
	})
}

// WriteIntervals stores the repetition intervals in order.
func (w *SessionWriter) WriteIntervals(ctx context.Context, intervals []segment.Interval) error {
	return w.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM repetitions WHERE session_id = ?`, w.id); err != nil {
			return fmt.Errorf("clear repetitions: %w", err)
		}
		for i, iv := range intervals {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO repetitions (session_id, seq, start_index, end_index) VALUES (?, ?, ?, ?)`,
				w.id, i, iv.Start, iv.End); err != nil {
				return fmt.Errorf("insert repetition %d: %w", i, err)
			}
		}
		return nil
	})
}

// WriteScores stores the raw score sequence in order.
func (w *SessionWriter) WriteScores(ctx context.Context, scores []float64) error {
	return w.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM predictions WHERE session_id = ?`, w.id); err != nil {
			return fmt.Errorf("clear predictions: %w", err)
		}
		for i, s := range scores {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO predictions (session_id, seq, score) VALUES (?, ?, ?)`,
				w.id, i, s); err != nil {
				return fmt.Errorf("insert prediction %d: %w", i, err)
			}
		}
		return nil
	})
}

// Scores reads back a session's scores in order.
func (d *DB) Scores(ctx context.Context, sessionID string) ([]float64, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT score FROM predictions WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()
	var out []float64
	for rows.Next() {
		var s float64
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Intervals reads back a session's intervals in order.
func (d *DB) Intervals(ctx context.Context, sessionID string) ([]segment.Interval, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT start_index, end_index FROM repetitions WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query repetitions: %w", err)
	}
	defer rows.Close()
	var out []segment.Interval
	for rows.Next() {
		var iv segment.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// SampleSummary reports how many sample rows a session stored, how many of
// them have a NULL cell, and whether the raw fallback table was used.
func (d *DB) SampleSummary(ctx context.Context, sessionID string) (rows, incomplete int, raw bool, err error) {
	cols := valueColumns()
	nullCheck := make([]string, len(cols))
	for i, c := range cols {
		nullCheck[i] = c + " IS NULL"
	}
	q := fmt.Sprintf(
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN %s THEN 1 ELSE 0 END), 0) FROM samples WHERE session_id = ?`,
		strings.Join(nullCheck, " OR "))
	if err = d.db.QueryRowContext(ctx, q, sessionID).Scan(&rows, &incomplete); err != nil {
		return 0, 0, false, fmt.Errorf("count samples: %w", err)
	}
	err = d.db.QueryRowContext(ctx, `SELECT raw_samples FROM sessions WHERE id = ?`, sessionID).Scan(&raw)
	if err != nil {
		return 0, 0, false, fmt.Errorf("read session: %w", err)
	}
	return rows, incomplete, raw, nil
}
