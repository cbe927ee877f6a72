// Package store persists learned motions.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/normanking/cortexmotion/internal/motion"
)

var ErrNilMotion = errors.New("motion cannot be nil")

// SQLite implements motion.Persister on a SQLite database.
type SQLite struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ motion.Persister = (*SQLite)(nil)

// Open opens (creating if needed) the database at path. ":memory:" keeps everything in memory.
func Open(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection so an in-memory database is shared
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS motions (
		name TEXT PRIMARY KEY,
		framerate REAL NOT NULL,
		duration REAL NOT NULL,
		complexity REAL NOT NULL,
		affected_bones TEXT NOT NULL,
		frames TEXT NOT NULL,
		recorded_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_motions_complexity ON motions(complexity DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLite) SaveMotion(ctx context.Context, m *motion.Learned) error {
	if m == nil {
		return ErrNilMotion
	}
	frames, err := json.Marshal(m.Frames)
	if err != nil {
		return fmt.Errorf("encode frames: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
	INSERT INTO motions (name, framerate, duration, complexity, affected_bones, frames, recorded_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		framerate = excluded.framerate,
		duration = excluded.duration,
		complexity = excluded.complexity,
		affected_bones = excluded.affected_bones,
		frames = excluded.frames,
		recorded_at = excluded.recorded_at
	`
	_, err = s.db.ExecContext(ctx, query,
		m.Name,
		m.Framerate,
		m.Duration,
		m.Complexity,
		strings.Join(m.AffectedBones, "\n"),
		string(frames),
		m.RecordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save motion %q: %w", m.Name, err)
	}
	return nil
}

func (s *SQLite) DeleteMotion(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM motions WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete motion %q: %w", name, err)
	}
	return nil
}

// LoadMotions returns every stored motion, most complex first.
func (s *SQLite) LoadMotions(ctx context.Context) ([]*motion.Learned, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
	SELECT name, framerate, duration, complexity, affected_bones, frames, recorded_at
	FROM motions
	ORDER BY complexity DESC, name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query motions: %w", err)
	}
	defer rows.Close()

	var out []*motion.Learned
	for rows.Next() {
		var (
			m          motion.Learned
			bones      string
			frames     string
			recordedAt string
		)
		if err := rows.Scan(&m.Name, &m.Framerate, &m.Duration, &m.Complexity, &bones, &frames, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan motion: %w", err)
		}
		if err := json.Unmarshal([]byte(frames), &m.Frames); err != nil {
			return nil, fmt.Errorf("decode frames of %q: %w", m.Name, err)
		}
		if bones != "" {
			m.AffectedBones = strings.Split(bones, "\n")
			sort.Strings(m.AffectedBones)
		}
		if m.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt); err != nil {
			return nil, fmt.Errorf("decode recorded_at of %q: %w", m.Name, err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate motions: %w", err)
	}
	return out, nil
}

// Names lists stored motion names sorted.
func (s *SQLite) Names(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM motions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query motion names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan motion name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
