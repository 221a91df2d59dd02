// Package fieldkit implements the offline-first field client: a local
// draft store backed by SQLite and a sync engine that uploads queued
// assessments to the platform when connectivity allows.
package fieldkit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Draft states.
const (
	StateDraft  = "draft"
	StateQueued = "queued"
	StateSynced = "synced"
	StateFailed = "failed"
)

// Draft is an assessment captured offline.
type Draft struct {
	ClientRef  string                 `json:"client_ref"`
	EntityID   string                 `json:"entity_id"`
	IncidentID string                 `json:"incident_id"`
	Sector     string                 `json:"sector"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Needs      []Need                 `json:"needs,omitempty"`
	State      string                 `json:"state"`
	Attempts   int                    `json:"attempts"`
	LastError  string                 `json:"last_error,omitempty"`
	CapturedAt time.Time              `json:"captured_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// Need mirrors the server's resource need shape.
type Need struct {
	Item     string  `json:"item"`
	Unit     string  `json:"unit"`
	Quantity float64 `json:"quantity"`
}

// Store persists drafts in a local SQLite database.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and initializes) the draft database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open draft store: %w", err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	const schema = `CREATE TABLE IF NOT EXISTS drafts (
		client_ref  TEXT PRIMARY KEY,
		entity_id   TEXT NOT NULL,
		incident_id TEXT NOT NULL,
		sector      TEXT NOT NULL,
		data        TEXT NOT NULL DEFAULT '{}',
		needs       TEXT NOT NULL DEFAULT '[]',
		state       TEXT NOT NULL DEFAULT 'draft',
		attempts    INTEGER NOT NULL DEFAULT 0,
		last_error  TEXT NOT NULL DEFAULT '',
		captured_at TIMESTAMP NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init draft store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// SaveDraft inserts or replaces a draft. An empty ClientRef gets one
// assigned.
func (s *Store) SaveDraft(ctx context.Context, d Draft) (Draft, error) {
	if d.ClientRef == "" {
		d.ClientRef = uuid.NewString()
	}
	if d.State == "" {
		d.State = StateDraft
	}
	if d.CapturedAt.IsZero() {
		d.CapturedAt = time.Now().UTC()
	}
	d.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(d.Data)
	if err != nil {
		return Draft{}, fmt.Errorf("encode data: %w", err)
	}
	needs, err := json.Marshal(d.Needs)
	if err != nil {
		return Draft{}, fmt.Errorf("encode needs: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO drafts
		(client_ref, entity_id, incident_id, sector, data, needs, state, attempts, last_error, captured_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_ref) DO UPDATE SET
			entity_id = excluded.entity_id,
			incident_id = excluded.incident_id,
			sector = excluded.sector,
			data = excluded.data,
			needs = excluded.needs,
			state = excluded.state,
			attempts = excluded.attempts,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at`,
		d.ClientRef, d.EntityID, d.IncidentID, d.Sector, string(data), string(needs),
		d.State, d.Attempts, d.LastError, d.CapturedAt, d.UpdatedAt)
	if err != nil {
		return Draft{}, fmt.Errorf("save draft: %w", err)
	}
	return d, nil
}

// GetDraft retrieves a draft by client reference.
func (s *Store) GetDraft(ctx context.Context, clientRef string) (Draft, error) {
	row := s.db.QueryRowContext(ctx, `SELECT client_ref, entity_id, incident_id, sector,
		data, needs, state, attempts, last_error, captured_at, updated_at
		FROM drafts WHERE client_ref = ?`, clientRef)
	return scanDraft(row.Scan)
}

// ListDrafts returns drafts in the given state; an empty state matches all.
func (s *Store) ListDrafts(ctx context.Context, state string) ([]Draft, error) {
	query := `SELECT client_ref, entity_id, incident_id, sector, data, needs,
		state, attempts, last_error, captured_at, updated_at FROM drafts`
	args := []interface{}{}
	if state != "" {
		query += ` WHERE state = ?`
		args = append(args, state)
	}
	query += ` ORDER BY captured_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drafts []Draft
	for rows.Next() {
		d, err := scanDraft(rows.Scan)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

// Queue moves a draft into the upload queue.
func (s *Store) Queue(ctx context.Context, clientRef string) error {
	return s.setState(ctx, clientRef, StateQueued, 0, "")
}

// MarkSynced records a successful upload.
func (s *Store) MarkSynced(ctx context.Context, clientRef string) error {
	return s.setState(ctx, clientRef, StateSynced, -1, "")
}

// MarkFailed records a failed upload attempt. attempts is the new total.
func (s *Store) MarkFailed(ctx context.Context, clientRef string, attempts int, lastError string) error {
	return s.setState(ctx, clientRef, StateFailed, attempts, lastError)
}

// Requeue puts a failed draft back in the queue keeping its attempt count.
func (s *Store) Requeue(ctx context.Context, clientRef string, attempts int) error {
	return s.setState(ctx, clientRef, StateQueued, attempts, "")
}

func (s *Store) setState(ctx context.Context, clientRef, state string, attempts int, lastError string) error {
	query := `UPDATE drafts SET state = ?, last_error = ?, updated_at = ?`
	args := []interface{}{state, lastError, time.Now().UTC()}
	if attempts >= 0 {
		query += `, attempts = ?`
		args = append(args, attempts)
	}
	query += ` WHERE client_ref = ?`
	args = append(args, clientRef)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("draft %s not found", clientRef)
	}
	return nil
}

// DeleteSynced removes drafts already accepted by the server.
func (s *Store) DeleteSynced(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE state = ?`, StateSynced)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanDraft(scan func(dest ...interface{}) error) (Draft, error) {
	var d Draft
	var data, needs string
	if err := scan(&d.ClientRef, &d.EntityID, &d.IncidentID, &d.Sector,
		&data, &needs, &d.State, &d.Attempts, &d.LastError, &d.CapturedAt, &d.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Draft{}, fmt.Errorf("draft not found")
		}
		return Draft{}, err
	}
	if err := json.Unmarshal([]byte(data), &d.Data); err != nil {
		return Draft{}, fmt.Errorf("decode data: %w", err)
	}
	if err := json.Unmarshal([]byte(needs), &d.Needs); err != nil {
		return Draft{}, fmt.Errorf("decode needs: %w", err)
	}
	return d, nil
}
