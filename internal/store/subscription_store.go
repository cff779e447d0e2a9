package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jjenkins/cornerwise/internal/geo"
	"github.com/jjenkins/cornerwise/internal/model"
)

const subscriptionColumns = `id, user_id, email, site_name, active,
	ST_Y(center) AS center_lat, ST_X(center) AS center_lng, radius_meters,
	ST_AsText(geofence) AS geofence, query, created`

type subscriptionRow struct {
	ID           int64     `db:"id"`
	UserID       int64     `db:"user_id"`
	Email        string    `db:"email"`
	SiteName     string    `db:"site_name"`
	Active       bool      `db:"active"`
	CenterLat    *float64  `db:"center_lat"`
	CenterLng    *float64  `db:"center_lng"`
	RadiusMeters float64   `db:"radius_meters"`
	Geofence     *string   `db:"geofence"`
	Query        []byte    `db:"query"`
	Created      time.Time `db:"created"`
}

func (r *subscriptionRow) toModel() (model.Subscription, error) {
	sub := model.Subscription{
		ID:       r.ID,
		UserID:   r.UserID,
		Email:    r.Email,
		SiteName: r.SiteName,
		Active:   r.Active,
		Created:  r.Created,
		Radius:   geo.Meters(r.RadiusMeters),
	}
	if r.CenterLat != nil && r.CenterLng != nil {
		sub.Center = &geo.Point{Lat: *r.CenterLat, Lng: *r.CenterLng}
	}
	if r.Geofence != nil {
		pg, err := geo.ParsePolygonWKT(*r.Geofence)
		if err != nil {
			return sub, fmt.Errorf("failed to parse geofence of subscription %d: %w", r.ID, err)
		}
		sub.Polygon = pg
	}
	if len(r.Query) > 0 {
		var q model.ProposalQuery
		if err := json.Unmarshal(r.Query, &q); err != nil {
			return sub, fmt.Errorf("failed to parse query of subscription %d: %w", r.ID, err)
		}
		sub.Query = &q
	}
	return sub, nil
}

// SubscriptionStore handles database operations for subscriptions
type SubscriptionStore struct {
	db *sqlx.DB
}

// NewSubscriptionStore creates a new SubscriptionStore
func NewSubscriptionStore(db *sqlx.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// SubscriptionsNear returns active subscriptions centered within radius of p
func (s *SubscriptionStore) SubscriptionsNear(ctx context.Context, p geo.Point, radius geo.Distance) ([]model.Subscription, error) {
	return s.selectSubscriptions(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE active AND center IS NOT NULL
		  AND ST_DWithin(center::geography, ST_GeomFromText($1, 4326)::geography, $2)
		ORDER BY id`, p.WKT(), radius.Meters())
}

// SubscriptionsContaining returns active subscriptions whose geofence
// polygon contains p
func (s *SubscriptionStore) SubscriptionsContaining(ctx context.Context, p geo.Point) ([]model.Subscription, error) {
	return s.selectSubscriptions(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE active AND geofence IS NOT NULL
		  AND ST_Contains(geofence, ST_GeomFromText($1, 4326))
		ORDER BY id`, p.WKT())
}

// ActiveSubscriptions returns every active subscription grouped by user
func (s *SubscriptionStore) ActiveSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	return s.selectSubscriptions(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE active
		ORDER BY user_id, id`)
}

func (s *SubscriptionStore) selectSubscriptions(ctx context.Context, query string, args ...interface{}) ([]model.Subscription, error) {
	var rows []subscriptionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get subscriptions: %w", err)
	}

	subs := make([]model.Subscription, 0, len(rows))
	for i := range rows {
		sub, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// SaveSubscription inserts a subscription, or updates it when it has an ID
func (s *SubscriptionStore) SaveSubscription(ctx context.Context, sub *model.Subscription) error {
	var center, fence, query *string
	if sub.Center != nil {
		wkt := sub.Center.WKT()
		center = &wkt
	}
	if len(sub.Polygon) > 0 {
		wkt := sub.Polygon.WKT()
		fence = &wkt
	}
	if sub.Query != nil {
		b, err := json.Marshal(sub.Query)
		if err != nil {
			return fmt.Errorf("failed to encode subscription query: %w", err)
		}
		q := string(b)
		query = &q
	}
	if sub.Created.IsZero() {
		sub.Created = time.Now()
	}

	if sub.ID == 0 {
		err := s.db.QueryRowxContext(ctx, `
			INSERT INTO subscriptions (user_id, email, site_name, active, center,
			                           radius_meters, geofence, query, created)
			VALUES ($1, $2, $3, $4, ST_GeomFromText($5, 4326), $6,
			        ST_GeomFromText($7, 4326), $8, $9)
			RETURNING id`,
			sub.UserID, sub.Email, sub.SiteName, sub.Active, center,
			sub.Radius.Meters(), fence, query, sub.Created,
		).Scan(&sub.ID)
		if err != nil {
			return fmt.Errorf("failed to insert subscription: %w", err)
		}
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions SET
			email = $2, site_name = $3, active = $4,
			center = ST_GeomFromText($5, 4326), radius_meters = $6,
			geofence = ST_GeomFromText($7, 4326), query = $8
		WHERE id = $1`,
		sub.ID, sub.Email, sub.SiteName, sub.Active, center,
		sub.Radius.Meters(), fence, query,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription %d: %w", sub.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// RunStore tracks importer runs
type RunStore struct {
	db *sqlx.DB
}

// NewRunStore creates a new RunStore
func NewRunStore(db *sqlx.DB) *RunStore {
	return &RunStore{db: db}
}

// LastRun returns when the importer last ran, or nil if it never has
func (s *RunStore) LastRun(ctx context.Context, importer string) (*time.Time, error) {
	var at time.Time
	err := s.db.GetContext(ctx, &at, `SELECT last_run FROM importer_runs WHERE importer = $1`, importer)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last run of %s: %w", importer, err)
	}
	return &at, nil
}

// SaveRun records a completed run
func (s *RunStore) SaveRun(ctx context.Context, importer string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO importer_runs (importer, last_run)
		VALUES ($1, $2)
		ON CONFLICT (importer) DO UPDATE SET last_run = EXCLUDED.last_run`, importer, at)
	if err != nil {
		return fmt.Errorf("failed to save run of %s: %w", importer, err)
	}
	return nil
}
