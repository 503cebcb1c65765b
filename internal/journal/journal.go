// Package journal keeps a sqlite log of host actions taken on the dashboard.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hostdesk/internal/events"
	"hostdesk/internal/metrics"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// Timestamps are stored in UTC with a fixed width so they sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one recorded host action.
type Entry struct {
	ID      string
	Type    string
	TableID int64
	Date    string
	Error   string
	At      time.Time
}

// Succeeded reports whether the action completed.
func (e Entry) Succeeded() bool { return e.Error == "" }

// Store is the journal database.
type Store struct {
	db      *sql.DB
	metrics *metrics.Metrics
	logger  *zerolog.Logger
}

// Open opens (creating when needed) the journal at path.
func Open(path string, m *metrics.Metrics, logger *zerolog.Logger) (*Store, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	s := &Store{db: db, metrics: m, logger: logger}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Journal initialized")
	return s, nil
}

func (s *Store) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS host_actions (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			table_id INTEGER NOT NULL,
			viewed_date TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_host_actions_at ON host_actions(at)`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// Record stores e. Recording the same ID twice keeps the first entry.
func (s *Store) Record(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO host_actions (id, event_type, table_id, viewed_date, error, at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Type, e.TableID, e.Date, e.Error, e.At.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", e.Type, err)
	}
	s.metrics.IncJournal()
	return nil
}

// List returns entries with from <= At < to, oldest first.
func (s *Store) List(ctx context.Context, from, to time.Time) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_type, table_id, viewed_date, error, at
		 FROM host_actions
		 WHERE at >= ? AND at < ?
		 ORDER BY at, id`,
		from.UTC().Format(timeLayout), to.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var at string
		if err := rows.Scan(&e.ID, &e.Type, &e.TableID, &e.Date, &e.Error, &at); err != nil {
			return nil, err
		}
		if e.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("journal entry %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Subscribe records every table event published on bus.
func (s *Store) Subscribe(bus *events.Bus) {
	handler := func(ev events.Event) error {
		var p events.TableFinish
		if err := events.Decode(ev, &p); err != nil {
			s.logger.Warn().Err(err).Str("event", ev.Type).Msg("journal: bad payload")
			return err
		}
		at := p.At
		if at.IsZero() {
			at = ev.CreatedAt
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.Record(ctx, Entry{
			ID:      ev.ID,
			Type:    ev.Type,
			TableID: p.TableID,
			Date:    p.Date,
			Error:   p.Error,
			At:      at,
		})
		if err != nil {
			s.logger.Error().Err(err).Str("event", ev.Type).Msg("journal: record failed")
		}
		return err
	}
	bus.Subscribe(events.TableFinished, handler)
	bus.Subscribe(events.TableFinishFailed, handler)
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
