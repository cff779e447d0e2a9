package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var schema = []struct {
	name string
	ddl  string
}{
	{"postgis", `CREATE EXTENSION IF NOT EXISTS postgis`},
	{"proposals", `
		CREATE TABLE IF NOT EXISTS proposals (
			id BIGSERIAL PRIMARY KEY,
			case_number TEXT NOT NULL UNIQUE,
			address TEXT NOT NULL,
			other_addresses TEXT NOT NULL DEFAULT '',
			location geometry(Point, 4326) NOT NULL,
			region_name TEXT NOT NULL DEFAULT '',
			complete BOOLEAN NOT NULL DEFAULT FALSE,
			status TEXT NOT NULL DEFAULT '',
			summary VARCHAR(1024) NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			updated TIMESTAMPTZ NOT NULL,
			modified TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS proposals_location_idx ON proposals USING GIST (location);
		CREATE INDEX IF NOT EXISTS proposals_region_idx ON proposals (lower(region_name));
		CREATE INDEX IF NOT EXISTS proposals_updated_idx ON proposals (updated);
		CREATE INDEX IF NOT EXISTS proposals_created_idx ON proposals (created)`},
	{"attributes", `
		CREATE TABLE IF NOT EXISTS attributes (
			id BIGSERIAL PRIMARY KEY,
			proposal_id BIGINT NOT NULL REFERENCES proposals(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			handle TEXT NOT NULL,
			published TIMESTAMPTZ NOT NULL,
			text_value TEXT,
			date_value TIMESTAMPTZ,
			UNIQUE (proposal_id, handle),
			CHECK (text_value IS NULL OR date_value IS NULL)
		)`},
	{"events", `
		CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			date TIMESTAMPTZ NOT NULL,
			duration_seconds BIGINT,
			location TEXT NOT NULL DEFAULT '',
			region_name TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			minutes TEXT NOT NULL DEFAULT '',
			created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (date, title, region_name)
		)`},
	{"event_proposals", `
		CREATE TABLE IF NOT EXISTS event_proposals (
			event_id BIGINT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			proposal_id BIGINT NOT NULL REFERENCES proposals(id) ON DELETE CASCADE,
			PRIMARY KEY (event_id, proposal_id)
		)`},
	{"documents", `
		CREATE TABLE IF NOT EXISTS documents (
			id BIGSERIAL PRIMARY KEY,
			proposal_id BIGINT NOT NULL REFERENCES proposals(id) ON DELETE CASCADE,
			event_id BIGINT REFERENCES events(id) ON DELETE SET NULL,
			url TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			field TEXT NOT NULL DEFAULT '',
			published TIMESTAMPTZ,
			document_path TEXT NOT NULL DEFAULT '',
			fulltext_path TEXT NOT NULL DEFAULT '',
			thumbnail_path TEXT NOT NULL DEFAULT '',
			encoding TEXT NOT NULL DEFAULT '',
			created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (proposal_id, url)
		)`},
	{"images", `
		CREATE TABLE IF NOT EXISTS images (
			id BIGSERIAL PRIMARY KEY,
			proposal_id BIGINT NOT NULL REFERENCES proposals(id) ON DELETE CASCADE,
			document_id BIGINT REFERENCES documents(id) ON DELETE CASCADE,
			url TEXT NOT NULL UNIQUE,
			image_path TEXT NOT NULL DEFAULT '',
			thumbnail_path TEXT NOT NULL DEFAULT '',
			width INT NOT NULL DEFAULT 0,
			height INT NOT NULL DEFAULT 0,
			skip_cache BOOLEAN NOT NULL DEFAULT FALSE,
			priority INT NOT NULL DEFAULT 0,
			source TEXT NOT NULL DEFAULT '',
			created TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`},
	{"changesets", `
		CREATE TABLE IF NOT EXISTS changesets (
			id BIGSERIAL PRIMARY KEY,
			proposal_id BIGINT NOT NULL REFERENCES proposals(id) ON DELETE CASCADE,
			changes JSONB NOT NULL,
			created TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS changesets_proposal_created_idx ON changesets (proposal_id, created)`},
	{"subscriptions", `
		CREATE TABLE IF NOT EXISTS subscriptions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			email TEXT NOT NULL,
			site_name TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			center geometry(Point, 4326),
			radius_meters DOUBLE PRECISION NOT NULL DEFAULT 0,
			geofence geometry(Polygon, 4326),
			query JSONB,
			created TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS subscriptions_center_idx ON subscriptions USING GIST (center);
		CREATE INDEX IF NOT EXISTS subscriptions_geofence_idx ON subscriptions USING GIST (geofence)`},
	{"importer_runs", `
		CREATE TABLE IF NOT EXISTS importer_runs (
			importer TEXT PRIMARY KEY,
			last_run TIMESTAMPTZ NOT NULL
		)`},
	{"staff_notifications", `
		CREATE TABLE IF NOT EXISTS staff_notifications (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			sender TEXT NOT NULL DEFAULT '',
			addresses TEXT NOT NULL DEFAULT '',
			proposal_ids BIGINT[] NOT NULL DEFAULT '{}',
			radius_meters DOUBLE PRECISION NOT NULL,
			points JSONB NOT NULL,
			message TEXT NOT NULL,
			subscribers INT NOT NULL,
			region TEXT NOT NULL,
			created TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`},
	{"metrics", `
		CREATE TABLE IF NOT EXISTS metrics (
			id BIGSERIAL PRIMARY KEY,
			metric_name TEXT NOT NULL,
			metric_value TEXT NOT NULL,
			calculated_at TIMESTAMPTZ NOT NULL
		)`},
}

// CreateTables creates the tables and indexes if they don't exist
func CreateTables(ctx context.Context, db *sqlx.DB) error {
	for _, s := range schema {
		if _, err := db.ExecContext(ctx, s.ddl); err != nil {
			return fmt.Errorf("failed to create %s: %w", s.name, err)
		}
	}
	return nil
}
