package service

import (
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/jjenkins/cornerwise/internal/model"
)

func summaryOf(start float64, end *float64, entries ...*model.SummaryEntry) *model.Summary {
	s := &model.Summary{Changes: model.NewEntryMap(), Start: start, End: end}
	for _, e := range entries {
		s.Changes.Set(e.ProposalID, e)
		if e.New {
			s.New++
		} else {
			s.Updated++
		}
	}
	s.Total = s.New + s.Updated
	return s
}

func f64(v float64) *float64 { return &v }

func TestMergeSingleSummaryUnchanged(t *testing.T) {
	s := summaryOf(100, nil, &model.SummaryEntry{ProposalID: 7, New: true})
	merged := Merge([]model.SubscriptionSummary{{Subscription: &model.Subscription{ID: 1}, Summary: s}})
	assert.Equal(t, merged == s, true)
	assert.Equal(t, Merge(nil) == nil, true)
}

func TestMergeUpdatedWins(t *testing.T) {
	a := summaryOf(100, nil, &model.SummaryEntry{ProposalID: 7, New: true})
	b := summaryOf(200, nil, &model.SummaryEntry{
		ProposalID: 7,
		Properties: []model.Change{{Name: "status", Old: "Filed", New: "Approved"}},
	})

	merged := Merge([]model.SubscriptionSummary{
		{Subscription: &model.Subscription{ID: 1}, Summary: a},
		{Subscription: &model.Subscription{ID: 2}, Summary: b},
	})
	assert.Equal(t, merged.New, 0)
	assert.Equal(t, merged.Updated, 1)
	assert.Equal(t, merged.Total, 1)

	e, ok := merged.Changes.Get(7)
	assert.Equal(t, ok, true)
	assert.Equal(t, e.New, false)
	assert.Equal(t, e.Subscriptions, []int64{1, 2})
	assert.Equal(t, len(e.Properties), 1)

	// Inputs are not modified
	orig, _ := b.Changes.Get(7)
	assert.Equal(t, len(orig.Subscriptions), 0)
}

func TestMergeKeepsUpdatedOverLaterNew(t *testing.T) {
	a := summaryOf(100, nil, &model.SummaryEntry{ProposalID: 7})
	b := summaryOf(100, nil, &model.SummaryEntry{ProposalID: 7, New: true})
	merged := Merge([]model.SubscriptionSummary{
		{Subscription: &model.Subscription{ID: 1}, Summary: a},
		{Subscription: &model.Subscription{ID: 2}, Summary: b},
	})
	e, _ := merged.Changes.Get(7)
	assert.Equal(t, e.New, false)
	assert.Equal(t, e.Subscriptions, []int64{1, 2})
	assert.Equal(t, merged.Updated, 1)
}

func TestMergeWindowAndOrder(t *testing.T) {
	a := summaryOf(300, f64(900), &model.SummaryEntry{ProposalID: 1})
	b := summaryOf(200, nil, &model.SummaryEntry{ProposalID: 2, New: true})
	c := summaryOf(400, f64(800),
		&model.SummaryEntry{ProposalID: 3, New: true},
		&model.SummaryEntry{ProposalID: 2, New: true},
	)
	merged := Merge([]model.SubscriptionSummary{
		{Subscription: &model.Subscription{ID: 1}, Summary: a},
		{Subscription: &model.Subscription{ID: 2}, Summary: b},
		{Subscription: &model.Subscription{ID: 3}, Summary: c},
	})

	assert.Equal(t, merged.Start, float64(200))
	assert.Equal(t, *merged.End, float64(800))
	assert.Equal(t, merged.Changes.Keys(), []int64{2, 3, 1})
	assert.Equal(t, merged.New, 2)
	assert.Equal(t, merged.Updated, 1)
	assert.Equal(t, merged.Total, 3)

	e, _ := merged.Changes.Get(2)
	assert.Equal(t, e.Subscriptions, []int64{2, 3})
}

func TestMergeWithoutSubscriptions(t *testing.T) {
	a := summaryOf(100, nil, &model.SummaryEntry{ProposalID: 1, New: true})
	b := summaryOf(100, nil, &model.SummaryEntry{ProposalID: 1, New: true})
	merged := Merge([]model.SubscriptionSummary{{Summary: a}, {Summary: b}})
	e, _ := merged.Changes.Get(1)
	assert.Equal(t, len(e.Subscriptions), 0)
	assert.Equal(t, merged.Total, 1)
}
