package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/pkg/errors"

	"github.com/jjenkins/cornerwise/internal/config"
	"github.com/jjenkins/cornerwise/internal/geo"
	"github.com/jjenkins/cornerwise/internal/mail"
	"github.com/jjenkins/cornerwise/internal/model"
	"github.com/jjenkins/cornerwise/internal/store"
)

type captureSender struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (c *captureSender) Send(ctx context.Context, msg mail.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

type notifierFixture struct {
	store    *store.MemoryStore
	sender   *captureSender
	notifier *Notifier
	elmID    int64
	nearby   *model.Subscription
}

func newNotifierFixture(t *testing.T) *notifierFixture {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)
	u, err := newRecorder(s, t0).Apply(ctx, elmStreet(), somerville)
	assert.Equal(t, err, nil)

	center := u.Proposal.Location
	nearby := &model.Subscription{UserID: 1, Email: "neighbor@example.com", Active: true, Center: &center, Radius: geo.Feet(500)}
	assert.Equal(t, s.SaveSubscription(ctx, nearby), nil)
	away := geo.Point{Lat: 42.2, Lng: -71.5}
	assert.Equal(t, s.SaveSubscription(ctx, &model.Subscription{UserID: 2, Email: "far@example.com", Active: true, Center: &away, Radius: geo.Feet(500)}), nil)

	sender := &captureSender{}
	n := NewNotifier(NotifierDeps{
		Proposals:     s,
		Notifications: s,
		Drafts:        store.NewMemoryDraftStore(),
		Matcher:       NewMatcher(s),
		Geocoder:      NewProposalGeocoder(s),
		Sender:        sender,
		Regions:       config.DefaultRegions(),
		Site:          mail.Site{Name: "Cornerwise", Root: "https://cornerwise.org"},
		Radius:        geo.Feet(300),
	})
	n.now = func() time.Time { return t0 }
	return &notifierFixture{store: s, sender: sender, notifier: n, elmID: u.Proposal.ID, nearby: nearby}
}

func TestReplaceBoilerplate(t *testing.T) {
	out := ReplaceBoilerplate("Hello from %region%:\n%proposals%\n%addresses% %unknown%",
		"Somerville, MA", []string{"12 Elm St (PB-2017-01)"}, []string{"1 Davis Sq", "2 Davis Sq"})
	assert.Equal(t, out, "Hello from Somerville, MA:\n<br/>12 Elm St (PB-2017-01)\n<br/>1 Davis Sq\n<br/><br/>2 Davis Sq %unknown%")

	assert.Equal(t, ReplaceBoilerplate("%proposals%", "x", nil, nil), "")
}

func TestPrepareAndSend(t *testing.T) {
	ctx := context.Background()
	f := newNotifierFixture(t)

	draft, err := f.notifier.Prepare(ctx, NotificationRequest{
		Title:       "Hearing tonight",
		Sender:      "planner@somervillema.gov",
		Region:      "somerville, ma",
		Addresses:   []string{"12 Elm St", "99 Nowhere Rd", " "},
		ProposalIDs: []int64{f.elmID},
		Message:     `<p>Meeting <script>alert(1)</script>tonight</p>`,
	})
	assert.Equal(t, err, nil)
	assert.NotEqual(t, draft.ID, "")
	assert.Equal(t, draft.Notification.Region, "Somerville, MA")
	assert.Equal(t, draft.Notification.Radius, geo.Feet(300))
	assert.Equal(t, draft.Notification.Subscribers, 1)
	assert.Equal(t, draft.Notification.Addresses, "12 Elm St")
	assert.Equal(t, len(draft.Notification.Points), 2)
	assert.Equal(t, strings.Contains(draft.Notification.Message, "script"), false)
	assert.Equal(t, strings.Contains(draft.Notification.Message, "Meeting"), true)
	assert.Equal(t, draft.Failures, []model.GeocodeFailure{{
		Address: "99 Nowhere Rd",
		Reason:  `no known location for "99 Nowhere Rd" in Somerville, MA`,
	}})
	assert.Equal(t, draft.Recipients, []model.DraftRecipient{{
		SubscriptionID: f.nearby.ID,
		Email:          "neighbor@example.com",
		Proposals:      []string{"12 Elm St (PB-2017-01)"},
		Addresses:      []string{"12 Elm St"},
	}})
	assert.Equal(t, strings.HasPrefix(draft.Example, "You are receiving this message from the planning staff in Somerville, MA"), true)

	reviewed, err := f.notifier.Review(ctx, draft.ID)
	assert.Equal(t, err, nil)
	assert.Equal(t, reviewed.ID, draft.ID)
	assert.Equal(t, len(f.sender.sent), 0)

	note, err := f.notifier.Send(ctx, draft.ID)
	assert.Equal(t, err, nil)
	assert.NotEqual(t, note.ID, int64(0))
	assert.Equal(t, len(f.sender.sent), 1)

	msg := f.sender.sent[0]
	assert.Equal(t, msg.Kind, mail.KindStaffNotification)
	assert.Equal(t, msg.To, "neighbor@example.com")
	assert.Equal(t, msg.Subject, "Hearing tonight")
	assert.Equal(t, strings.Contains(msg.HTML, "Meeting"), true)
	assert.Equal(t, strings.Contains(msg.HTML, "<hr/>"), true)
	assert.Equal(t, strings.Contains(msg.HTML, "12 Elm St (PB-2017-01)"), true)

	saved := f.store.StaffNotifications()
	assert.Equal(t, len(saved), 1)
	assert.Equal(t, saved[0].Title, "Hearing tonight")
	assert.Equal(t, saved[0].Created, t0)

	_, err = f.notifier.Send(ctx, draft.ID)
	assert.Equal(t, model.IsNotFound(err), true)
	assert.Equal(t, len(f.sender.sent), 1)
}

func TestSendDefaultSubject(t *testing.T) {
	ctx := context.Background()
	f := newNotifierFixture(t)

	draft, err := f.notifier.Prepare(ctx, NotificationRequest{
		Region:     "Somerville, MA",
		Addresses:  []string{"12 Elm St"},
		Message:    "Road work starts Monday",
		RadiusFeet: 1000,
		Greeting:   "Near %addresses%",
	})
	assert.Equal(t, err, nil)
	assert.Equal(t, draft.Example, "Near 12 Elm St")

	_, err = f.notifier.Send(ctx, draft.ID)
	assert.Equal(t, err, nil)
	assert.Equal(t, f.sender.sent[0].Subject, "A message from Somerville, MA planning staff")
}

func TestPrepareValidation(t *testing.T) {
	ctx := context.Background()
	f := newNotifierFixture(t)

	cambridge := elmStreet()
	cambridge.CaseNumber = "BZA-2017-3"
	cambridge.RegionName = strp("Cambridge, MA")
	u, err := newRecorder(f.store, t0).Apply(ctx, cambridge, somerville)
	assert.Equal(t, err, nil)

	tests := []struct {
		name    string
		req     NotificationRequest
		problem string
	}{
		{
			name:    "unknown region",
			req:     NotificationRequest{Region: "Springfield", Addresses: []string{"12 Elm St"}, Message: "hi"},
			problem: `unknown region "Springfield"`,
		},
		{
			name:    "radius too small",
			req:     NotificationRequest{Region: "Somerville, MA", Addresses: []string{"12 Elm St"}, Message: "hi", RadiusFeet: 50},
			problem: "radius must be between 100 and 105600 feet",
		},
		{
			name:    "empty message",
			req:     NotificationRequest{Region: "Somerville, MA", Addresses: []string{"12 Elm St"}, Message: "<script>hi</script>"},
			problem: "message is required",
		},
		{
			name:    "proposal outside region",
			req:     NotificationRequest{Region: "Somerville, MA", ProposalIDs: []int64{u.Proposal.ID}, Message: "hi"},
			problem: "1 proposal(s) are outside Somerville, MA.",
		},
		{
			name:    "missing proposal",
			req:     NotificationRequest{Region: "Somerville, MA", ProposalIDs: []int64{f.elmID, 999}, Message: "hi"},
			problem: "1 proposal(s) do not exist",
		},
		{
			name:    "nothing geocoded",
			req:     NotificationRequest{Region: "Somerville, MA", Addresses: []string{"99 Nowhere Rd"}, Message: "hi"},
			problem: "Please provide at least one address or proposal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.notifier.Prepare(ctx, tt.req)
			var verr *model.ValidationError
			assert.Equal(t, errors.As(err, &verr), true)
			assert.Equal(t, verr.Problems[0], tt.problem)
		})
	}
	assert.Equal(t, len(f.sender.sent), 0)
}
