// Package migrations applies the relational schema in order. Statements are
// idempotent so Apply is safe to run on every startup.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		organization TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		lga TEXT NOT NULL DEFAULT '',
		ward TEXT NOT NULL DEFAULT '',
		latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		population INTEGER NOT NULL DEFAULT 0,
		households INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS entity_assignments (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		assigned_by TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (entity_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS incidents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		sub_type TEXT NOT NULL DEFAULT '',
		severity TEXT NOT NULL,
		status TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		occurred_at TIMESTAMPTZ NOT NULL,
		declared_by TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS incident_entities (
		incident_id TEXT NOT NULL REFERENCES incidents(id) ON DELETE CASCADE,
		entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		linked_by TEXT NOT NULL,
		linked_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (incident_id, entity_id)
	)`,
	`CREATE TABLE IF NOT EXISTS assessments (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL REFERENCES entities(id),
		incident_id TEXT NOT NULL REFERENCES incidents(id),
		assessor_id TEXT NOT NULL REFERENCES users(id),
		sector TEXT NOT NULL,
		data JSONB,
		needs JSONB,
		verification_status TEXT NOT NULL,
		verified_by TEXT NOT NULL DEFAULT '',
		verified_at TIMESTAMPTZ,
		rejection_reason TEXT NOT NULL DEFAULT '',
		client_ref TEXT NOT NULL DEFAULT '',
		captured_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_assessments_client_ref
		ON assessments(assessor_id, client_ref) WHERE client_ref <> ''`,
	`CREATE TABLE IF NOT EXISTS responses (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL REFERENCES entities(id),
		incident_id TEXT NOT NULL REFERENCES incidents(id),
		commitment_id TEXT NOT NULL DEFAULT '',
		responder_id TEXT NOT NULL REFERENCES users(id),
		items JSONB NOT NULL,
		status TEXT NOT NULL,
		verification_status TEXT NOT NULL,
		verified_by TEXT NOT NULL DEFAULT '',
		verified_at TIMESTAMPTZ,
		rejection_reason TEXT NOT NULL DEFAULT '',
		delivered_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS commitments (
		id TEXT PRIMARY KEY,
		donor_id TEXT NOT NULL REFERENCES users(id),
		entity_id TEXT NOT NULL REFERENCES entities(id),
		incident_id TEXT NOT NULL REFERENCES incidents(id),
		items JSONB NOT NULL,
		status TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		pledged_at TIMESTAMPTZ NOT NULL,
		delivered_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS entity_gap_reports (
		entity_id TEXT PRIMARY KEY,
		gaps JSONB NOT NULL,
		computed_at TIMESTAMPTZ NOT NULL
	)`,
}

// Apply executes every schema statement in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

// Count returns the number of schema statements. Used by tests.
func Count() int { return len(statements) }
