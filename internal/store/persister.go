package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jjenkins/cornerwise/internal/blob"
)

// PostgresPersister is the Persister backed by PostgreSQL/PostGIS
type PostgresPersister struct {
	*ProposalStore
	*SubscriptionStore
	*RunStore
	*NotificationStore
	*MetricsStore

	db *sqlx.DB
}

// NewPostgresPersister wires the per-entity stores to one pool
func NewPostgresPersister(db *sqlx.DB, blobs blob.Store) *PostgresPersister {
	return &PostgresPersister{
		ProposalStore:     NewProposalStore(db, blobs),
		SubscriptionStore: NewSubscriptionStore(db),
		RunStore:          NewRunStore(db),
		NotificationStore: NewNotificationStore(db),
		MetricsStore:      NewMetricsStore(db),
		db:                db,
	}
}

// CreateTables creates the schema if it doesn't exist
func (p *PostgresPersister) CreateTables(ctx context.Context) error {
	return CreateTables(ctx, p.db)
}

// Close closes the pool
func (p *PostgresPersister) Close() error {
	return p.db.Close()
}

var _ Persister = (*PostgresPersister)(nil)
var _ Persister = (*MemoryStore)(nil)
