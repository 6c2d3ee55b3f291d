package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// migrations are applied in order at startup; each entry runs at most once,
// tracked by version in schema_migrations.
var migrations = []struct {
	version int
	sql     string
}{
	{1, `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			handle TEXT UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			image TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'user',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			deleted_at TIMESTAMPTZ
		)`},
	{2, `
		CREATE TABLE IF NOT EXISTS api_tokens (
			hash TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			label TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			revoked_at TIMESTAMPTZ
		)`},
	{3, `
		CREATE TABLE IF NOT EXISTS skills (
			id TEXT PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			owner_user_id TEXT NOT NULL,
			latest_version_id TEXT,
			tags JSONB NOT NULL DEFAULT '{}',
			canonical_skill_id TEXT,
			fork_of JSONB,
			moderation_status TEXT NOT NULL DEFAULT 'active',
			soft_deleted_at TIMESTAMPTZ,
			report_count INT NOT NULL DEFAULT 0,
			stats JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`},
	{4, `
		CREATE TABLE IF NOT EXISTS skill_versions (
			id TEXT PRIMARY KEY,
			skill_id TEXT NOT NULL REFERENCES skills(id) ON DELETE CASCADE,
			version TEXT NOT NULL,
			changelog TEXT NOT NULL DEFAULT '',
			changelog_source TEXT NOT NULL DEFAULT 'user',
			files JSONB NOT NULL DEFAULT '[]',
			fingerprint TEXT NOT NULL,
			parsed JSONB,
			created_by TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			soft_deleted_at TIMESTAMPTZ,
			UNIQUE (skill_id, version)
		)`},
	{5, `
		CREATE TABLE IF NOT EXISTS version_fingerprints (
			skill_id TEXT NOT NULL REFERENCES skills(id) ON DELETE CASCADE,
			version_id TEXT NOT NULL REFERENCES skill_versions(id) ON DELETE CASCADE,
			fingerprint TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (version_id)
		);
		CREATE INDEX IF NOT EXISTS idx_version_fingerprints_lookup
			ON version_fingerprints (skill_id, fingerprint, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_version_fingerprints_fp
			ON version_fingerprints (fingerprint)`},
	{6, `
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS skill_embeddings (
			id TEXT PRIMARY KEY,
			skill_id TEXT NOT NULL REFERENCES skills(id) ON DELETE CASCADE,
			version_id TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			embedding vector(1536),
			is_latest BOOLEAN NOT NULL DEFAULT false,
			is_approved BOOLEAN NOT NULL DEFAULT false,
			visibility TEXT NOT NULL DEFAULT 'latest',
			checksum TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_skill_embeddings_skill
			ON skill_embeddings (skill_id);
		CREATE INDEX IF NOT EXISTS idx_skill_embeddings_visibility
			ON skill_embeddings (visibility)`},
	{7, `
		CREATE TABLE IF NOT EXISTS stars (
			user_id TEXT NOT NULL,
			skill_id TEXT NOT NULL REFERENCES skills(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, skill_id)
		)`},
	{8, `
		CREATE TABLE IF NOT EXISTS comments (
			id TEXT PRIMARY KEY,
			skill_id TEXT NOT NULL REFERENCES skills(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			soft_deleted_at TIMESTAMPTZ
		)`},
	{9, `
		CREATE TABLE IF NOT EXISTS skill_badges (
			skill_id TEXT NOT NULL REFERENCES skills(id) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			by_user_id TEXT NOT NULL,
			at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (skill_id, kind)
		)`},
	{10, `
		CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			actor_user_id TEXT NOT NULL,
			action TEXT NOT NULL,
			target_type TEXT NOT NULL,
			target_id TEXT NOT NULL,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`},
}

// migrate applies pending migrations over a single connection.
func migrate(ctx context.Context, conn *pgx.Conn) error {
	if _, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var exists bool
		err := conn.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", m.version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.version, err)
		}
		if exists {
			continue
		}
		if _, err := conn.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", m.version, err)
		}
		if _, err := conn.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.version); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
	}
	return nil
}
