package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jjenkins/cornerwise/internal/model"
)

// NotificationStore records staff notifications
type NotificationStore struct {
	db *sqlx.DB
}

// NewNotificationStore creates a new NotificationStore
func NewNotificationStore(db *sqlx.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

// SaveStaffNotification inserts n and sets its ID
func (s *NotificationStore) SaveStaffNotification(ctx context.Context, n *model.StaffNotification) error {
	points, err := json.Marshal(n.Points)
	if err != nil {
		return fmt.Errorf("failed to encode notification points: %w", err)
	}
	if n.Created.IsZero() {
		n.Created = time.Now()
	}

	err = s.db.QueryRowxContext(ctx, `
		INSERT INTO staff_notifications (title, sender, addresses, proposal_ids,
		                                 radius_meters, points, message, subscribers,
		                                 region, created)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		n.Title,
		n.Sender,
		n.Addresses,
		pq.Array(n.ProposalIDs),
		n.Radius.Meters(),
		string(points),
		n.Message,
		n.Subscribers,
		n.Region,
		n.Created,
	).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("failed to save staff notification: %w", err)
	}
	return nil
}

// MetricsStore calculates and stores system-wide metrics
type MetricsStore struct {
	db *sqlx.DB
}

// NewMetricsStore creates a new MetricsStore
func NewMetricsStore(db *sqlx.DB) *MetricsStore {
	return &MetricsStore{db: db}
}

// SystemMetrics counts what is stored
func (s *MetricsStore) SystemMetrics(ctx context.Context) (*model.SystemMetrics, error) {
	m := &model.SystemMetrics{}

	countQuery := `
		SELECT
			(SELECT COUNT(*) FROM proposals) AS total_proposals,
			(SELECT COUNT(*) FROM proposals WHERE NOT complete) AS open_proposals,
			(SELECT COUNT(*) FROM changesets) AS total_changesets,
			(SELECT COUNT(*) FROM events) AS total_events,
			(SELECT COUNT(*) FROM documents) AS total_documents,
			(SELECT COUNT(*) FROM images) AS total_images,
			(SELECT COUNT(*) FROM subscriptions WHERE active) AS active_subscriptions
	`
	err := s.db.QueryRowxContext(ctx, countQuery).Scan(
		&m.TotalProposals,
		&m.OpenProposals,
		&m.TotalChangesets,
		&m.TotalEvents,
		&m.TotalDocuments,
		&m.TotalImages,
		&m.ActiveSubscriptions,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate counts: %w", err)
	}

	busiestQuery := `
		SELECT region_name, COUNT(*)
		FROM proposals
		GROUP BY region_name
		ORDER BY COUNT(*) DESC, region_name
		LIMIT 1
	`
	err = s.db.QueryRowxContext(ctx, busiestQuery).Scan(&m.BusiestRegion, &m.BusiestRegionProposals)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to find busiest region: %w", err)
	}

	return m, nil
}

// SaveMetric stores a single metric value
func (s *MetricsStore) SaveMetric(ctx context.Context, name, value string, at time.Time) error {
	query := `
		INSERT INTO metrics (metric_name, metric_value, calculated_at)
		VALUES ($1, $2, $3)
	`

	_, err := s.db.ExecContext(ctx, query, name, value, at)
	if err != nil {
		return fmt.Errorf("failed to store metric %s: %w", name, err)
	}

	return nil
}

// LatestMetrics retrieves the most recent value of each metric
func (s *MetricsStore) LatestMetrics(ctx context.Context) (map[string]string, error) {
	query := `
		SELECT DISTINCT ON (metric_name) metric_name, metric_value
		FROM metrics
		ORDER BY metric_name, calculated_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics: %w", err)
	}
	defer rows.Close()

	metrics := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		metrics[name] = value
	}

	return metrics, rows.Err()
}
