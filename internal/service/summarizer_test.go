package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/jjenkins/cornerwise/internal/geo"
	"github.com/jjenkins/cornerwise/internal/model"
	"github.com/jjenkins/cornerwise/internal/store"
)

// seedWindow creates one proposal before t0 that changes after it, and one
// proposal created after t0. It returns their ids.
func seedWindow(t *testing.T, s *store.MemoryStore) (oldID, newID int64) {
	ctx := context.Background()

	before := elmStreet()
	before.UpdatedDate = strp("2017-05-20T09:00:00")
	u, err := newRecorder(s, t0.Add(-24*time.Hour)).Apply(ctx, before, somerville)
	assert.Equal(t, err, nil)
	oldID = u.Proposal.ID

	fresh := elmStreet()
	fresh.CaseNumber = "ZBA-2017-40"
	fresh.AllAddresses = []string{"40 Walnut St"}
	fresh.Location = &model.LocationPayload{Lat: f64p(42.39), Long: f64p(-71.1)}
	fresh.UpdatedDate = strp("2017-06-01T09:00:00")
	u, err = newRecorder(s, t0.Add(time.Hour)).Apply(ctx, fresh, somerville)
	assert.Equal(t, err, nil)
	newID = u.Proposal.ID

	changed := elmStreet()
	changed.UpdatedDate = strp("2017-06-01T10:00:00")
	changed.Status = strp("Approved")
	changed.Decisions = &model.DocumentGroup{Links: []model.DocumentLink{{URL: "http://example.com/decision.pdf", Title: "Decision"}}}
	_, err = newRecorder(s, t0.Add(2*time.Hour)).Apply(ctx, changed, somerville)
	assert.Equal(t, err, nil)
	return oldID, newID
}

func TestSummarizeNewAndUpdated(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)
	oldID, newID := seedWindow(t, s)

	summary, err := NewSummarizer(s, s).Summarize(ctx, model.ProposalQuery{RegionName: "Somerville, MA"}, t0, nil)
	assert.Equal(t, err, nil)
	assert.Equal(t, summary.New, 1)
	assert.Equal(t, summary.Updated, 1)
	assert.Equal(t, summary.Total, 2)
	assert.Equal(t, summary.Changes.Keys(), []int64{newID, oldID})
	assert.Equal(t, summary.Start, model.Timestamp(t0))
	assert.Equal(t, summary.End == nil, true)

	entry, _ := summary.Changes.Get(newID)
	assert.Equal(t, entry.New, true)
	assert.Equal(t, len(entry.Properties), 0)

	entry, _ = summary.Changes.Get(oldID)
	assert.Equal(t, entry.New, false)
	assert.Equal(t, len(entry.Properties), 2)
	assert.Equal(t, entry.Properties[0].Name, "updated")
	assert.Equal(t, entry.Properties[1], model.Change{Name: "status", Old: "Filed", New: "Approved"})
	assert.Equal(t, len(entry.Documents), 1)
	assert.Equal(t, entry.Documents[0].URL, "http://example.com/decision.pdf")

	b, err := json.Marshal(summary)
	assert.Equal(t, err, nil)
	assert.Equal(t, strings.Contains(string(b), `"end":null`), true)
}

func TestSummarizeReportsProposalOnce(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)
	_, newID := seedWindow(t, s)

	// Update the new proposal too; it must stay new only
	p := elmStreet()
	p.CaseNumber = "ZBA-2017-40"
	p.AllAddresses = []string{"40 Walnut St"}
	p.Location = &model.LocationPayload{Lat: f64p(42.39), Long: f64p(-71.1)}
	p.UpdatedDate = strp("2017-06-02T09:00:00")
	p.Status = strp("Withdrawn")
	_, err := newRecorder(s, t0.Add(3*time.Hour)).Apply(ctx, p, somerville)
	assert.Equal(t, err, nil)

	summary, err := NewSummarizer(s, s).Summarize(ctx, model.ProposalQuery{}, t0, nil)
	assert.Equal(t, err, nil)
	assert.Equal(t, summary.Total, 2)
	assert.Equal(t, summary.Changes.Len(), 2)

	entry, _ := summary.Changes.Get(newID)
	assert.Equal(t, entry.New, true)
}

func TestSummarizeLimitKeepsNewProposalsNew(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)
	oldID, newID := seedWindow(t, s)

	p := elmStreet()
	p.CaseNumber = "ZBA-2017-41"
	p.AllAddresses = []string{"41 Walnut St"}
	p.Location = &model.LocationPayload{Lat: f64p(42.391), Long: f64p(-71.1)}
	p.UpdatedDate = strp("2017-06-02T09:00:00")
	u, err := newRecorder(s, t0.Add(3*time.Hour)).Apply(ctx, p, somerville)
	assert.Equal(t, err, nil)
	latestID := u.Proposal.ID

	sum := NewSummarizer(s, s)
	tests := []struct {
		limit   int
		keys    []int64
		new     int
		updated int
	}{
		{1, []int64{latestID}, 1, 0},
		{2, []int64{latestID, newID}, 2, 0},
		{3, []int64{latestID, newID, oldID}, 2, 1},
		{0, []int64{latestID, newID, oldID}, 2, 1},
	}
	for _, tt := range tests {
		summary, err := sum.Summarize(ctx, model.ProposalQuery{Limit: tt.limit}, t0, nil)
		assert.Equal(t, err, nil)
		assert.Equal(t, summary.Changes.Keys(), tt.keys)
		assert.Equal(t, summary.New, tt.new)
		assert.Equal(t, summary.Updated, tt.updated)
		assert.Equal(t, summary.Total, tt.new+tt.updated)

		for _, id := range tt.keys {
			entry, _ := summary.Changes.Get(id)
			assert.Equal(t, entry.New, id != oldID)
		}
	}
}

func TestSummarizeImages(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)
	oldID, newID := seedWindow(t, s)

	images := []*model.Image{
		{ProposalID: oldID, URL: "http://example.com/before.jpg", Created: t0.Add(-time.Hour)},
		{ProposalID: oldID, URL: "http://example.com/after.jpg", Created: t0.Add(3 * time.Hour)},
		{ProposalID: newID, URL: "http://example.com/side.jpg", Priority: 1, Created: t0.Add(90 * time.Minute)},
		{ProposalID: newID, URL: "http://example.com/front.jpg", Priority: 0, Created: t0.Add(2 * time.Hour)},
	}
	for _, img := range images {
		assert.Equal(t, s.AddImage(ctx, img), nil)
	}

	summary, err := NewSummarizer(s, s).Summarize(ctx, model.ProposalQuery{}, t0, nil)
	assert.Equal(t, err, nil)

	entry, _ := summary.Changes.Get(oldID)
	assert.Equal(t, entry.Images, []model.ImageView{{ID: images[1].ID, Src: "http://example.com/after.jpg"}})

	entry, _ = summary.Changes.Get(newID)
	assert.Equal(t, len(entry.Images), 0)
	assert.Equal(t, entry.Proposal.Images, []model.ImageView{{ID: images[3].ID, Src: "http://example.com/front.jpg"}})
}

func TestSummarizeConcatenatesChangesets(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)
	oldID, _ := seedWindow(t, s)

	p := elmStreet()
	p.UpdatedDate = strp("2017-06-03T10:00:00")
	p.Status = strp("Appealed")
	_, err := newRecorder(s, t0.Add(5*time.Hour)).Apply(ctx, p, somerville)
	assert.Equal(t, err, nil)

	summary, err := NewSummarizer(s, s).Summarize(ctx, model.ProposalQuery{IDs: []int64{oldID}}, t0, nil)
	assert.Equal(t, err, nil)
	entry, _ := summary.Changes.Get(oldID)

	var statuses []interface{}
	for _, ch := range entry.Properties {
		if ch.Name == "status" {
			statuses = append(statuses, ch.New)
		}
	}
	assert.Equal(t, statuses, []interface{}{"Approved", "Appealed"})
}

func TestSummarizeWindowUpperBound(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)
	seedWindow(t, s)

	// Both timestamps in the store are after this bound
	until := time.Date(2017, 5, 31, 0, 0, 0, 0, time.UTC)
	summary, err := NewSummarizer(s, s).Summarize(ctx, model.ProposalQuery{}, t0.Add(-48*time.Hour), &until)
	assert.Equal(t, err, nil)
	assert.Equal(t, summary.Updated, 0)
	assert.Equal(t, *summary.End, model.Timestamp(until))
}

func TestSummarizeNothing(t *testing.T) {
	s := store.NewMemoryStore(nil)
	summary, err := NewSummarizer(s, s).Summarize(context.Background(), model.ProposalQuery{RegionName: "Cambridge, MA"}, t0, nil)
	assert.Equal(t, err, nil)
	assert.Equal(t, summary.Changes.Len(), 0)
	assert.Equal(t, summary.Total, 0)
}

func TestSummarizeMalformedQuery(t *testing.T) {
	s := store.NewMemoryStore(nil)
	q := model.ProposalQuery{Near: &geo.Circle{Center: geo.Point{Lat: 42.39, Lng: -71.1}}}
	_, err := NewSummarizer(s, s).Summarize(context.Background(), q, t0, nil)
	assert.Equal(t, model.IsMalformedQuery(err), true)
}

func TestSummarizeSubscription(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)
	oldID, newID := seedWindow(t, s)
	sum := NewSummarizer(s, s)

	center := geo.Point{Lat: 42.3876, Lng: -71.0995}
	late := model.Subscription{ID: 1, Center: &center, Radius: geo.Feet(300), Created: t0.Add(90 * time.Minute)}
	summary, err := sum.SummarizeSubscription(ctx, &late, t0, nil)
	assert.Equal(t, err, nil)
	// The only change near the center happened after the subscription
	assert.Equal(t, summary.Changes.Keys(), []int64{oldID})
	assert.Equal(t, summary.Start, model.Timestamp(late.Created))

	none, err := sum.SummarizeSubscription(ctx, &model.Subscription{ID: 2}, t0, nil)
	assert.Equal(t, err, nil)
	assert.Equal(t, none == nil, true)

	subs := []model.Subscription{
		{ID: 3, Query: &model.ProposalQuery{CaseNumbers: []string{"ZBA-2017-40"}}, Created: t0.Add(-time.Hour)},
		{ID: 4},
		{ID: 5, Query: &model.ProposalQuery{RegionName: "Somerville, MA"}, Created: t0.Add(-time.Hour)},
	}
	pairs, err := sum.FindUpdates(ctx, subs, t0, nil)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(pairs), 2)
	assert.Equal(t, pairs[0].Subscription.ID, int64(3))
	assert.Equal(t, pairs[0].Summary.Changes.Keys(), []int64{newID})
	assert.Equal(t, pairs[1].Subscription.ID, int64(5))
	assert.Equal(t, pairs[1].Summary.Total, 2)
}

func TestSummarizeEvents(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)

	p := elmStreet()
	p.Events = []model.EventPayload{{Title: "Planning Board", Start: "2017-06-15T18:00:00"}}
	_, err := newRecorder(s, t0.Add(time.Hour)).Apply(ctx, p, somerville)
	assert.Equal(t, err, nil)

	sum := NewSummarizer(s, s)
	events, err := sum.SummarizeEvents(ctx, t0, nil, "somerville, ma")
	assert.Equal(t, err, nil)
	assert.Equal(t, len(events), 1)

	events, err = sum.SummarizeEvents(ctx, t0, nil, "Cambridge, MA")
	assert.Equal(t, err, nil)
	assert.Equal(t, len(events), 0)
}
