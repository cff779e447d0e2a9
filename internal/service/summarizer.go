package service

import (
	"context"
	"time"

	log "github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/jjenkins/cornerwise/internal/model"
	"github.com/jjenkins/cornerwise/internal/store"
)

// Summarizer builds summaries of what changed in a window
type Summarizer struct {
	proposals store.Proposals
	events    store.Events
}

// NewSummarizer creates a Summarizer reading from the given stores
func NewSummarizer(proposals store.Proposals, events store.Events) *Summarizer {
	return &Summarizer{proposals: proposals, events: events}
}

// Summarize finds proposals matching q that were created after since (new)
// or, failing that, updated in (since, until] (updated). Updated entries
// carry the changesets, documents and images recorded after since. A
// limit on q caps the combined result, new proposals first.
func (s *Summarizer) Summarize(ctx context.Context, q model.ProposalQuery, since time.Time, until *time.Time) (*model.Summary, error) {
	if err := q.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}
	summary := model.NewSummary(since, until)

	// Limit applies to the combined result; every new proposal must be
	// excluded from the updated set first.
	newQuery := q
	newQuery.Limit = 0
	newQuery.CreatedAfter = later(q.CreatedAfter, since)
	created, err := s.proposals.FindProposals(ctx, newQuery)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find new proposals")
	}

	newIDs := make([]int64, 0, len(created))
	for _, p := range created {
		newIDs = append(newIDs, p.ID)
	}

	updatedQuery := q
	updatedQuery.Limit = 0
	updatedQuery.ExcludeIDs = append(append([]int64(nil), q.ExcludeIDs...), newIDs...)
	updatedQuery.UpdatedAfter = later(q.UpdatedAfter, since)
	updatedQuery.UpdatedUntil = until
	if q.UpdatedUntil != nil && (until == nil || q.UpdatedUntil.Before(*until)) {
		updatedQuery.UpdatedUntil = q.UpdatedUntil
	}
	updated, err := s.proposals.FindProposals(ctx, updatedQuery)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find updated proposals")
	}

	if q.Limit > 0 {
		if len(created) > q.Limit {
			created = created[:q.Limit]
			newIDs = newIDs[:q.Limit]
		}
		if room := q.Limit - len(created); len(updated) > room {
			updated = updated[:room]
		}
	}

	if len(created) > 0 {
		images, err := s.proposals.ImagesFor(ctx, newIDs, time.Time{}, nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load images of new proposals")
		}
		// Images come lowest priority value first; new proposals carry only
		// their leading image.
		byProposal := make(map[int64][]model.ImageView)
		for i := range images {
			if len(byProposal[images[i].ProposalID]) == 0 {
				byProposal[images[i].ProposalID] = []model.ImageView{images[i].View()}
			}
		}
		for i := range created {
			p := &created[i]
			view := p.View()
			view.Images = byProposal[p.ID]
			summary.Changes.Set(p.ID, &model.SummaryEntry{ProposalID: p.ID, Proposal: view, New: true})
		}
	}

	if len(updated) > 0 {
		if err := s.addUpdates(ctx, summary, updated, since, until); err != nil {
			return nil, err
		}
	}

	summary.New = len(created)
	summary.Updated = len(updated)
	summary.Total = summary.New + summary.Updated
	return summary, nil
}

func (s *Summarizer) addUpdates(ctx context.Context, summary *model.Summary, updated []model.Proposal, since time.Time, until *time.Time) error {
	ids := make([]int64, 0, len(updated))
	for _, p := range updated {
		ids = append(ids, p.ID)
	}

	changesets, err := s.proposals.ChangesetsFor(ctx, ids, since)
	if err != nil {
		return errors.Wrap(err, "failed to load changesets")
	}
	props := make(map[int64][]model.Change)
	attrs := make(map[int64][]model.Change)
	for _, cs := range changesets {
		props[cs.ProposalID] = append(props[cs.ProposalID], cs.Changes.Properties...)
		attrs[cs.ProposalID] = append(attrs[cs.ProposalID], cs.Changes.Attributes...)
	}

	for i := range updated {
		p := &updated[i]
		summary.Changes.Set(p.ID, &model.SummaryEntry{
			ProposalID: p.ID,
			Proposal:   p.View(),
			Properties: props[p.ID],
			Attributes: attrs[p.ID],
		})
	}

	docs, err := s.proposals.DocumentsFor(ctx, ids, since, until)
	if err != nil {
		return errors.Wrap(err, "failed to load documents")
	}
	for i := range docs {
		if e, ok := summary.Changes.Get(docs[i].ProposalID); ok {
			e.Documents = append(e.Documents, docs[i].View())
		}
	}

	images, err := s.proposals.ImagesFor(ctx, ids, since, until)
	if err != nil {
		return errors.Wrap(err, "failed to load images")
	}
	for i := range images {
		if e, ok := summary.Changes.Get(images[i].ProposalID); ok {
			e.Images = append(e.Images, images[i].View())
		}
	}
	return nil
}

// SummarizeSubscription summarizes the updates sub cares about. Changes
// that predate the subscription are left out. It returns nil when the
// subscription selects nothing.
func (s *Summarizer) SummarizeSubscription(ctx context.Context, sub *model.Subscription, since time.Time, until *time.Time) (*model.Summary, error) {
	q := sub.ProposalQuery()
	if q == nil {
		return nil, nil
	}
	if sub.Created.After(since) {
		since = sub.Created
	}
	summary, err := s.Summarize(ctx, *q, since, until)
	if err != nil {
		return nil, errors.Wrapf(err, "subscription %d", sub.ID)
	}
	return summary, nil
}

// FindUpdates summarizes every subscription, skipping those that select
// nothing
func (s *Summarizer) FindUpdates(ctx context.Context, subs []model.Subscription, since time.Time, until *time.Time) ([]model.SubscriptionSummary, error) {
	var out []model.SubscriptionSummary
	for i := range subs {
		sub := &subs[i]
		summary, err := s.SummarizeSubscription(ctx, sub, since, until)
		if err != nil {
			return nil, err
		}
		if summary == nil {
			log.V(1).Infof("Subscription %d has no query, skipping", sub.ID)
			continue
		}
		out = append(out, model.SubscriptionSummary{Subscription: sub, Summary: summary})
	}
	return out, nil
}

// SummarizeEvents lists the events created in (since, until]. An empty
// region matches every region.
func (s *Summarizer) SummarizeEvents(ctx context.Context, since time.Time, until *time.Time, region string) ([]model.Event, error) {
	events, err := s.events.EventsCreated(ctx, since, until, region)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load events")
	}
	return events, nil
}

func later(bound *time.Time, t time.Time) *time.Time {
	if bound != nil && bound.After(t) {
		b := *bound
		return &b
	}
	return &t
}

// UpcomingEvents lists up to limit events scheduled after the given time,
// soonest first
func (s *Summarizer) UpcomingEvents(ctx context.Context, after time.Time, region string, limit int) ([]model.EventView, error) {
	events, err := s.events.UpcomingEvents(ctx, after, region, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load upcoming events")
	}
	views := make([]model.EventView, 0, len(events))
	for i := range events {
		views = append(views, events[i].View())
	}
	return views, nil
}
