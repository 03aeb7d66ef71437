// Package db persists finalized monitoring sessions to SQLite.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the sessions database.
type DB struct {
	*sql.DB

	// Path is the filesystem path of the database, used by the admin
	// console label and backups.
	Path string
}

// OpenDB opens the database without touching the schema. Use NewDB unless
// migrations are being managed by hand.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := sqlDB.Exec(`PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}
	return &DB{DB: sqlDB, Path: path}, nil
}

// NewDB opens the database and applies all pending migrations.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// Session is one finalized monitoring session summary row.
type Session struct {
	ID          string        `json:"id"`
	SavedAt     time.Time     `json:"saved_at"`
	Source      string        `json:"source"`
	Duration    time.Duration `json:"duration"`
	Cars        int           `json:"cars"`
	Motorcycles int           `json:"motorcycles"`
	Buses       int           `json:"buses"`
	Trucks      int           `json:"trucks"`
	Total       int           `json:"total"`
}

// RecordSession appends a finalized session summary.
func (db *DB) RecordSession(ctx context.Context, s Session) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sessions (id, saved_at, source, duration_secs, cars, motorcycles, buses, trucks, total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.SavedAt.UTC().Format(time.RFC3339), s.Source, int64(s.Duration.Seconds()),
		s.Cars, s.Motorcycles, s.Buses, s.Trucks, s.Total,
	)
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

// ListSessions returns saved sessions, newest first, up to limit
// (limit <= 0 means no limit).
func (db *DB) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	q := `SELECT id, saved_at, source, duration_secs, cars, motorcycles, buses, trucks, total
		FROM sessions ORDER BY saved_at DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = db.QueryContext(ctx, q+" LIMIT ?", limit)
	} else {
		rows, err = db.QueryContext(ctx, q)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var savedAt string
		var durationSecs int64
		if err := rows.Scan(&s.ID, &savedAt, &s.Source, &durationSecs,
			&s.Cars, &s.Motorcycles, &s.Buses, &s.Trucks, &s.Total); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, savedAt); err == nil {
			s.SavedAt = t
		}
		s.Duration = time.Duration(durationSecs) * time.Second
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// SessionCount returns the number of saved sessions.
func (db *DB) SessionCount(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}
