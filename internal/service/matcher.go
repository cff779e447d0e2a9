package service

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jjenkins/cornerwise/internal/geo"
	"github.com/jjenkins/cornerwise/internal/model"
)

// SubscriptionFinder answers the spatial questions the matcher asks
type SubscriptionFinder interface {
	SubscriptionsNear(ctx context.Context, p geo.Point, radius geo.Distance) ([]model.Subscription, error)
	SubscriptionsContaining(ctx context.Context, p geo.Point) ([]model.Subscription, error)
}

// Matcher fans candidates out to the subscriptions that cover them
type Matcher struct {
	finder SubscriptionFinder
}

// NewMatcher creates a Matcher backed by f
func NewMatcher(f SubscriptionFinder) *Matcher {
	return &Matcher{finder: f}
}

// Match maps each subscription to the candidates it covers. With a positive
// radius a subscription covers points within radius of its center;
// otherwise it covers points inside its own polygon. A subscription may
// match several candidates.
func (m *Matcher) Match(ctx context.Context, candidates []model.Candidate, radius geo.Distance) (*model.SubscriberMatches, error) {
	matches := model.NewSubscriberMatches()
	for _, c := range candidates {
		var subs []model.Subscription
		var err error
		if radius > 0 {
			subs, err = m.finder.SubscriptionsNear(ctx, c.Point, radius)
		} else {
			subs, err = m.finder.SubscriptionsContaining(ctx, c.Point)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to match %s", c.Label())
		}
		for _, sub := range subs {
			matches.Add(sub, c)
		}
	}
	return matches, nil
}
