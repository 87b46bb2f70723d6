package eventlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"safewatch/severity"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// :memory: databases are per connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while migrating database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			severity TEXT NOT NULL,
			location TEXT,
			message TEXT,
			reasoning TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_severity ON events(severity);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Save(ev Event) error {
	reasoning, err := json.Marshal(ev.Reasoning)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO events (id, timestamp, severity, location, message, reasoning) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Timestamp.UTC().Format(time.RFC3339Nano), string(ev.Severity), ev.Location, ev.Message, string(reasoning),
	)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", ev.ID, err)
	}
	return nil
}

// List returns up to limit events oldest first. limit <= 0 means all.
func (s *SQLiteStore) List(limit int) ([]Event, error) {
	q := `SELECT id, timestamp, severity, location, message, reasoning FROM events ORDER BY seq`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev        Event
			ts, sev   string
			reasoning string
		)
		if err := rows.Scan(&ev.ID, &ts, &sev, &ev.Location, &ev.Message, &reasoning); err != nil {
			return nil, err
		}
		if ev.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("event %s: bad timestamp %q: %w", ev.ID, ts, err)
		}
		ev.Severity = severity.Level(sev)
		if err := json.Unmarshal([]byte(reasoning), &ev.Reasoning); err != nil {
			return nil, fmt.Errorf("event %s: bad reasoning: %w", ev.ID, err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
