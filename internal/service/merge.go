package service

import (
	"github.com/jjenkins/cornerwise/internal/model"
)

// Merge combines one recipient's per-subscription summaries into a single
// digest. A proposal that is new in one summary and updated in another is
// reported as updated. Each entry lists the subscriptions that produced it.
//
// The window is the earliest start and the earliest end of the inputs, so
// it can be narrower than any single input's window.
func Merge(summaries []model.SubscriptionSummary) *model.Summary {
	switch len(summaries) {
	case 0:
		return nil
	case 1:
		return summaries[0].Summary
	}

	created := model.NewEntryMap()
	updated := model.NewEntryMap()
	merged := &model.Summary{Changes: model.NewEntryMap()}
	first := true

	for _, ss := range summaries {
		s := ss.Summary
		if s == nil {
			continue
		}
		if first || s.Start < merged.Start {
			merged.Start = s.Start
		}
		first = false
		if s.End != nil && (merged.End == nil || *s.End < *merged.End) {
			end := *s.End
			merged.End = &end
		}

		var subID int64
		if ss.Subscription != nil {
			subID = ss.Subscription.ID
		}

		for _, id := range s.Changes.Keys() {
			in, _ := s.Changes.Get(id)

			if e, ok := updated.Get(id); ok {
				addSubscription(e, subID)
				continue
			}
			if e, ok := created.Get(id); ok {
				if in.New {
					addSubscription(e, subID)
					continue
				}
				entry := copyEntry(in, e.Subscriptions)
				addSubscription(entry, subID)
				created.Delete(id)
				updated.Set(id, entry)
				continue
			}

			entry := copyEntry(in, nil)
			addSubscription(entry, subID)
			if in.New {
				created.Set(id, entry)
			} else {
				updated.Set(id, entry)
			}
		}
	}

	for _, id := range created.Keys() {
		e, _ := created.Get(id)
		merged.Changes.Set(id, e)
	}
	for _, id := range updated.Keys() {
		e, _ := updated.Get(id)
		merged.Changes.Set(id, e)
	}
	merged.New = created.Len()
	merged.Updated = updated.Len()
	merged.Total = merged.New + merged.Updated
	return merged
}

func copyEntry(e *model.SummaryEntry, subs []int64) *model.SummaryEntry {
	c := *e
	c.Subscriptions = append([]int64(nil), subs...)
	return &c
}

// addSubscription records id once. Zero means the summary had no
// subscription.
func addSubscription(e *model.SummaryEntry, id int64) {
	if id != 0 && !e.HasSubscription(id) {
		e.Subscriptions = append(e.Subscriptions, id)
	}
}
