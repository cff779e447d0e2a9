package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jjenkins/cornerwise/internal/model"
)

const eventColumns = `id, title, date, duration_seconds, location, region_name, description, minutes, created`

type eventRow struct {
	ID              int64     `db:"id"`
	Title           string    `db:"title"`
	Date            time.Time `db:"date"`
	DurationSeconds *int64    `db:"duration_seconds"`
	Location        string    `db:"location"`
	RegionName      string    `db:"region_name"`
	Description     string    `db:"description"`
	Minutes         string    `db:"minutes"`
	Created         time.Time `db:"created"`
}

func (r *eventRow) toModel() model.Event {
	e := model.Event{
		ID:          r.ID,
		Title:       r.Title,
		Date:        r.Date,
		Location:    r.Location,
		RegionName:  r.RegionName,
		Description: r.Description,
		Minutes:     r.Minutes,
		Created:     r.Created,
	}
	if r.DurationSeconds != nil {
		d := time.Duration(*r.DurationSeconds) * time.Second
		e.Duration = &d
	}
	return e
}

// EventsCreated returns events created in (since, until], optionally only
// those in region
func (s *ProposalStore) EventsCreated(ctx context.Context, since time.Time, until *time.Time, region string) ([]model.Event, error) {
	b := &builder{}
	b.where("created > " + b.arg(since))
	if until != nil {
		b.where("created <= " + b.arg(*until))
	}
	if region != "" {
		b.where("lower(region_name) = lower(" + b.arg(region) + ")")
	}

	var rows []eventRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+eventColumns+` FROM events`+b.clause()+` ORDER BY created, id`, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	return eventsFromRows(rows), nil
}

// UpcomingEvents returns events scheduled after the given time, soonest first
func (s *ProposalStore) UpcomingEvents(ctx context.Context, after time.Time, region string, limit int) ([]model.Event, error) {
	b := &builder{}
	b.where("date > " + b.arg(after))
	if region != "" {
		b.where("lower(region_name) = lower(" + b.arg(region) + ")")
	}
	query := `SELECT ` + eventColumns + ` FROM events` + b.clause() + ` ORDER BY date, id`
	if limit > 0 {
		query += " LIMIT " + b.arg(limit)
	}

	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, query, b.args...); err != nil {
		return nil, fmt.Errorf("failed to get upcoming events: %w", err)
	}
	return eventsFromRows(rows), nil
}

func eventsFromRows(rows []eventRow) []model.Event {
	events := make([]model.Event, 0, len(rows))
	for i := range rows {
		events = append(events, rows[i].toModel())
	}
	return events
}
