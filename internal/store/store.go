package store

import (
	"context"
	"time"

	"github.com/jjenkins/cornerwise/internal/geo"
	"github.com/jjenkins/cornerwise/internal/model"
)

// Proposals reads and writes proposals and their attached records
type Proposals interface {
	// RecordUpdate loads the record for caseNumber, passes it to apply and
	// writes the result, all under one lock on the case number.
	RecordUpdate(ctx context.Context, caseNumber string, apply model.ApplyFunc) (*model.ProposalUpdate, error)
	FindProposals(ctx context.Context, q model.ProposalQuery) ([]model.Proposal, error)
	GetProposal(ctx context.Context, id int64) (*model.ProposalDetail, error)
	// ChangesetsFor returns changesets created after since, oldest first
	ChangesetsFor(ctx context.Context, ids []int64, since time.Time) ([]model.Changeset, error)
	DocumentsFor(ctx context.Context, ids []int64, since time.Time, until *time.Time) ([]model.Document, error)
	ImagesFor(ctx context.Context, ids []int64, since time.Time, until *time.Time) ([]model.Image, error)
	AddImage(ctx context.Context, img *model.Image) error
	DeleteDocument(ctx context.Context, id int64) error
	DeleteImage(ctx context.Context, id int64) error
}

// Events reads hearings
type Events interface {
	EventsCreated(ctx context.Context, since time.Time, until *time.Time, region string) ([]model.Event, error)
	UpcomingEvents(ctx context.Context, after time.Time, region string, limit int) ([]model.Event, error)
}

// Subscriptions finds subscriptions by geofence
type Subscriptions interface {
	SubscriptionsNear(ctx context.Context, p geo.Point, radius geo.Distance) ([]model.Subscription, error)
	SubscriptionsContaining(ctx context.Context, p geo.Point) ([]model.Subscription, error)
	ActiveSubscriptions(ctx context.Context) ([]model.Subscription, error)
	SaveSubscription(ctx context.Context, sub *model.Subscription) error
}

// Runs tracks when each importer last ran
type Runs interface {
	LastRun(ctx context.Context, importer string) (*time.Time, error)
	SaveRun(ctx context.Context, importer string, at time.Time) error
}

// Notifications records staff broadcasts
type Notifications interface {
	SaveStaffNotification(ctx context.Context, n *model.StaffNotification) error
}

// Metrics computes and records aggregate counts
type Metrics interface {
	SystemMetrics(ctx context.Context) (*model.SystemMetrics, error)
	SaveMetric(ctx context.Context, name, value string, at time.Time) error
	LatestMetrics(ctx context.Context) (map[string]string, error)
}

// Persister is everything Cornerwise stores
type Persister interface {
	Proposals
	Events
	Subscriptions
	Runs
	Notifications
	Metrics
}
