package service

import (
	"context"
	"time"

	"github.com/a-h/templ"
	log "github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jjenkins/cornerwise/internal/mail"
	"github.com/jjenkins/cornerwise/internal/model"
	"github.com/jjenkins/cornerwise/internal/store"
)

// DigestSubject is the subject line of every digest
const DigestSubject = "Cornerwise: New Updates"

// digestRunName keys the digest job in the run log
const digestRunName = "digest"

// DefaultDigestWindow is how far back the first digest looks
const DefaultDigestWindow = 24 * time.Hour

var digestsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cornerwise_digests_total",
	Help: "Digest outcomes per recipient, by result",
}, []string{"result"})

// DigestStats tracks one digest run
type DigestStats struct {
	Recipients int
	Sent       int
	Empty      int
	Failed     int
}

// DigestService summarizes each user's subscriptions into one message
type DigestService struct {
	subs       store.Subscriptions
	runs       store.Runs
	summarizer *Summarizer
	sender     Sender
	site       mail.Site
	now        func() time.Time
}

// NewDigestService creates a DigestService
func NewDigestService(subs store.Subscriptions, runs store.Runs, summarizer *Summarizer, sender Sender, site mail.Site) *DigestService {
	return &DigestService{
		subs:       subs,
		runs:       runs,
		summarizer: summarizer,
		sender:     sender,
		site:       site,
		now:        time.Now,
	}
}

// UserDigest is the merged summary for one recipient
type UserDigest struct {
	UserID   int64
	Email    string
	SiteName string
	Summary  *model.Summary
}

// GroupByUser splits subscriptions by user, keeping first-seen order
func GroupByUser(subs []model.Subscription) [][]model.Subscription {
	index := make(map[int64]int)
	var groups [][]model.Subscription
	for _, s := range subs {
		i, ok := index[s.UserID]
		if !ok {
			i = len(groups)
			index[s.UserID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], s)
	}
	return groups
}

// Build merges the summaries of one user's subscriptions. The summary is
// nil when none of them selects anything.
func (d *DigestService) Build(ctx context.Context, subs []model.Subscription, since time.Time, until *time.Time) (*UserDigest, error) {
	if len(subs) == 0 {
		return nil, nil
	}
	pairs, err := d.summarizer.FindUpdates(ctx, subs, since, until)
	if err != nil {
		return nil, err
	}
	return &UserDigest{
		UserID:   subs[0].UserID,
		Email:    subs[0].Email,
		SiteName: subs[0].SiteName,
		Summary:  Merge(pairs),
	}, nil
}

// Run sends a digest to every user with active subscriptions that saw
// changes in (since, until]. Delivery is queued, not awaited.
func (d *DigestService) Run(ctx context.Context, since time.Time, until *time.Time) (*DigestStats, error) {
	subs, err := d.subs.ActiveSubscriptions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load subscriptions")
	}
	events, err := d.summarizer.SummarizeEvents(ctx, since, until, "")
	if err != nil {
		return nil, err
	}

	stats := &DigestStats{}
	for _, group := range GroupByUser(subs) {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}
		stats.Recipients++

		digest, err := d.Build(ctx, group, since, until)
		if err != nil {
			log.Errorf("Failed to summarize updates for user %d: %v", group[0].UserID, err)
			stats.Failed++
			digestsSent.WithLabelValues("failed").Inc()
			continue
		}
		if digest.Summary == nil || digest.Summary.Total == 0 {
			stats.Empty++
			digestsSent.WithLabelValues("empty").Inc()
			continue
		}

		if err := d.send(ctx, digest, events); err != nil {
			log.Errorf("Failed to send digest to user %d: %v", digest.UserID, err)
			stats.Failed++
			digestsSent.WithLabelValues("failed").Inc()
			continue
		}
		stats.Sent++
		digestsSent.WithLabelValues("sent").Inc()
	}

	log.Infof("Digest: %d recipients, %d sent, %d empty, %d failed",
		stats.Recipients, stats.Sent, stats.Empty, stats.Failed)
	return stats, nil
}

func (d *DigestService) email(digest *UserDigest, events []model.Event) templ.Component {
	site := d.site
	if digest.SiteName != "" {
		site.Name = digest.SiteName
	}
	return mail.DigestEmail(site, digest.Summary, events)
}

func (d *DigestService) send(ctx context.Context, digest *UserDigest, events []model.Event) error {
	html, err := mail.Render(ctx, d.email(digest, events))
	if err != nil {
		return errors.Wrap(err, "failed to render digest")
	}
	return d.sender.Send(ctx, mail.NewMessage(mail.KindDigest, digest.Email, DigestSubject, html))
}

// Preview renders the digest userID would receive for (since, until]
// without sending it. A user with nothing new gets an empty digest.
func (d *DigestService) Preview(ctx context.Context, userID int64, since time.Time, until *time.Time) (templ.Component, error) {
	subs, err := d.subs.ActiveSubscriptions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load subscriptions")
	}
	var mine []model.Subscription
	for _, s := range subs {
		if s.UserID == userID {
			mine = append(mine, s)
		}
	}
	if len(mine) == 0 {
		return nil, errors.Wrapf(model.ErrNotFound, "user %d has no active subscriptions", userID)
	}

	digest, err := d.Build(ctx, mine, since, until)
	if err != nil {
		return nil, err
	}
	if digest.Summary == nil {
		digest.Summary = model.NewSummary(since, until)
	}
	events, err := d.summarizer.SummarizeEvents(ctx, since, until, "")
	if err != nil {
		return nil, err
	}
	return d.email(digest, events), nil
}

// RunScheduled sends the digest for everything since the last scheduled
// run, or the last day on the first run, and records the run
func (d *DigestService) RunScheduled(ctx context.Context) (*DigestStats, error) {
	now := d.now()
	last, err := d.runs.LastRun(ctx, digestRunName)
	if err != nil {
		return nil, err
	}
	since := now.Add(-DefaultDigestWindow)
	if last != nil {
		since = *last
	}

	stats, err := d.Run(ctx, since, &now)
	if err != nil {
		return stats, err
	}
	if err := d.runs.SaveRun(ctx, digestRunName, now); err != nil {
		return stats, err
	}
	return stats, nil
}
