package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	log "github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"

	"github.com/jjenkins/cornerwise/internal/config"
	"github.com/jjenkins/cornerwise/internal/geo"
	"github.com/jjenkins/cornerwise/internal/mail"
	"github.com/jjenkins/cornerwise/internal/model"
	"github.com/jjenkins/cornerwise/internal/store"
)

// DefaultGreeting introduces a staff message. %region%, %proposals% and
// %addresses% are replaced per recipient.
const DefaultGreeting = "You are receiving this message from the planning staff in %region% " +
	"because you have subscribed to receive emails about development in your area. " +
	"The affected addresses in your area are:\n%proposals%\n%addresses%"

var boilerplatePattern = regexp.MustCompile(`%([a-z]+)%`)

// ReplaceBoilerplate expands the placeholders in greeting and turns line
// breaks into HTML breaks. Unknown placeholders are left as they are.
func ReplaceBoilerplate(greeting, region string, proposals, addresses []string) string {
	subs := map[string]string{
		"region":    region,
		"proposals": strings.Join(proposals, "\n<br/>"),
		"addresses": strings.Join(addresses, "\n<br/>"),
	}
	out := boilerplatePattern.ReplaceAllStringFunc(greeting, func(m string) string {
		if v, ok := subs[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
	return strings.ReplaceAll(out, "\n", "\n<br/>")
}

// Geocoder places an address within a region
type Geocoder interface {
	Geocode(ctx context.Context, address, region string) (geo.Point, error)
}

// ProposalGeocoder places addresses at the location of a known proposal
// with the same address
type ProposalGeocoder struct {
	proposals store.Proposals
}

// NewProposalGeocoder creates a ProposalGeocoder
func NewProposalGeocoder(p store.Proposals) *ProposalGeocoder {
	return &ProposalGeocoder{proposals: p}
}

// Geocode returns the location of the most recently updated proposal at
// address
func (g *ProposalGeocoder) Geocode(ctx context.Context, address, region string) (geo.Point, error) {
	found, err := g.proposals.FindProposals(ctx, model.ProposalQuery{Address: address, RegionName: region, Limit: 1})
	if err != nil {
		return geo.Point{}, err
	}
	if len(found) == 0 {
		return geo.Point{}, fmt.Errorf("no known location for %q in %s", address, region)
	}
	return found[0].Location, nil
}

// Sender queues outgoing mail
type Sender interface {
	Send(ctx context.Context, msg mail.Message) error
}

// NotificationRequest is what staff submit to notify nearby subscribers
type NotificationRequest struct {
	Title       string   `json:"title"`
	Sender      string   `json:"sender"`
	Addresses   []string `json:"addresses"`
	ProposalIDs []int64  `json:"proposal_ids"`
	Greeting    string   `json:"greeting"`
	Message     string   `json:"message"`
	RadiusFeet  float64  `json:"radius_feet"`
	Region      string   `json:"region"`
}

// Notifier prepares, reviews and sends staff notifications
type Notifier struct {
	proposals     store.Proposals
	notifications store.Notifications
	drafts        store.DraftStore
	matcher       *Matcher
	geocoder      Geocoder
	sender        Sender
	regions       *config.Regions
	site          mail.Site
	radius        geo.Distance
	policy        *bluemonday.Policy
	now           func() time.Time
}

// NotifierDeps are the collaborators a Notifier needs
type NotifierDeps struct {
	Proposals     store.Proposals
	Notifications store.Notifications
	Drafts        store.DraftStore
	Matcher       *Matcher
	Geocoder      Geocoder
	Sender        Sender
	Regions       *config.Regions
	Site          mail.Site
	// Radius used when a request gives none
	Radius geo.Distance
}

// NewNotifier creates a Notifier
func NewNotifier(d NotifierDeps) *Notifier {
	return &Notifier{
		proposals:     d.Proposals,
		notifications: d.Notifications,
		drafts:        d.Drafts,
		matcher:       d.Matcher,
		geocoder:      d.Geocoder,
		sender:        d.Sender,
		regions:       d.Regions,
		site:          d.Site,
		radius:        d.Radius,
		policy:        bluemonday.UGCPolicy(),
		now:           time.Now,
	}
}

// Prepare validates req, finds the subscribers it would reach and saves a
// draft for review. Addresses that cannot be geocoded are listed in the
// draft and left out; the request fails only when nothing is left to
// notify about.
func (n *Notifier) Prepare(ctx context.Context, req NotificationRequest) (*model.NotificationDraft, error) {
	var problems []string

	region, ok := n.regions.Lookup(req.Region)
	if !ok {
		problems = append(problems, fmt.Sprintf("unknown region %q", req.Region))
	}

	radius := n.radius
	if req.RadiusFeet != 0 {
		if req.RadiusFeet < config.MinNotifyRadiusFeet || req.RadiusFeet > config.MaxNotifyRadiusFeet {
			problems = append(problems, fmt.Sprintf("radius must be between %d and %d feet",
				config.MinNotifyRadiusFeet, config.MaxNotifyRadiusFeet))
		}
		radius = geo.Feet(req.RadiusFeet)
	}

	message := strings.TrimSpace(n.policy.Sanitize(req.Message))
	if message == "" {
		problems = append(problems, "message is required")
	}
	greeting := req.Greeting
	if strings.TrimSpace(greeting) == "" {
		greeting = DefaultGreeting
	}
	if len(problems) > 0 {
		return nil, errors.WithStack(&model.ValidationError{Problems: problems})
	}

	proposals, err := n.findProposals(ctx, req.ProposalIDs, region)
	if err != nil {
		return nil, err
	}

	var candidates []model.Candidate
	var points []geo.Point
	for i := range proposals {
		candidates = append(candidates, model.ProposalCandidate(&proposals[i]))
		points = append(points, proposals[i].Location)
	}

	var failures []model.GeocodeFailure
	var placed []string
	for _, addr := range req.Addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		pt, err := n.geocoder.Geocode(ctx, addr, region.Name)
		if err != nil {
			log.Infof("Could not geocode %q: %v", addr, err)
			failures = append(failures, model.GeocodeFailure{Address: addr, Reason: err.Error()})
			continue
		}
		placed = append(placed, addr)
		candidates = append(candidates, model.Candidate{Address: addr, Point: pt})
		points = append(points, pt)
	}

	if len(candidates) == 0 {
		problems = append(problems, "Please provide at least one address or proposal")
		for _, f := range failures {
			problems = append(problems, fmt.Sprintf("%s: %s", f.Address, f.Reason))
		}
		return nil, errors.WithStack(&model.ValidationError{Problems: problems})
	}

	matches, err := n.matcher.Match(ctx, candidates, radius)
	if err != nil {
		return nil, err
	}

	draft := &model.NotificationDraft{
		ID: uuid.New().String(),
		Notification: model.StaffNotification{
			Title:       strings.TrimSpace(req.Title),
			Sender:      req.Sender,
			Addresses:   strings.Join(placed, "\n"),
			ProposalIDs: req.ProposalIDs,
			Radius:      radius,
			Points:      points,
			Message:     message,
			Subscribers: matches.Len(),
			Region:      region.Name,
		},
		Greeting: greeting,
		Failures: failures,
		Created:  n.now(),
	}
	for _, m := range matches.List() {
		r := model.DraftRecipient{
			SubscriptionID: m.Subscription.ID,
			Email:          m.Subscription.Email,
			SiteName:       m.Subscription.SiteName,
		}
		r.Proposals, r.Addresses = splitLabels(m.Related)
		draft.Recipients = append(draft.Recipients, r)
	}

	allProposals, allAddresses := splitLabels(candidates)
	draft.Example = ReplaceBoilerplate(greeting, region.Name, allProposals, allAddresses)

	if err := n.drafts.SaveDraft(ctx, draft); err != nil {
		return nil, errors.Wrap(err, "failed to save draft")
	}
	return draft, nil
}

func (n *Notifier) findProposals(ctx context.Context, ids []int64, region config.Region) ([]model.Proposal, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := n.proposals.FindProposals(ctx, model.ProposalQuery{IDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load proposals")
	}

	var problems []string
	if len(found) != len(ids) {
		problems = append(problems, fmt.Sprintf("%d proposal(s) do not exist", len(ids)-len(found)))
	}
	outside := 0
	for _, p := range found {
		if !strings.EqualFold(p.RegionName, region.Name) {
			outside++
		}
	}
	if outside > 0 {
		problems = append(problems, fmt.Sprintf("%d proposal(s) are outside %s.", outside, region.Name))
	}
	if len(problems) > 0 {
		return nil, errors.WithStack(&model.ValidationError{Problems: problems})
	}
	return found, nil
}

func splitLabels(cs []model.Candidate) (proposals, addresses []string) {
	for _, c := range cs {
		if c.Proposal != nil {
			proposals = append(proposals, c.Label())
		} else {
			addresses = append(addresses, c.Label())
		}
	}
	return proposals, addresses
}

// Review returns a saved draft without consuming it
func (n *Notifier) Review(ctx context.Context, id string) (*model.NotificationDraft, error) {
	return n.drafts.GetDraft(ctx, id)
}

// Send consumes the draft, queues one message per recipient and records
// the notification. A draft can be sent only once.
func (n *Notifier) Send(ctx context.Context, id string) (*model.StaffNotification, error) {
	draft, err := n.drafts.TakeDraft(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "draft %s", id)
	}

	note := draft.Notification
	subject := note.Title
	if subject == "" {
		subject = fmt.Sprintf("A message from %s planning staff", note.Region)
	}

	for _, r := range draft.Recipients {
		boilerplate := ReplaceBoilerplate(draft.Greeting, note.Region, r.Proposals, r.Addresses)
		body := note.Message + "<br/><hr/><br/>" + boilerplate + "<br/>"
		site := n.site
		if r.SiteName != "" {
			site.Name = r.SiteName
		}

		related := append(append([]string(nil), r.Proposals...), r.Addresses...)
		html, err := mail.Render(ctx, mail.StaffNotificationEmail(site, note.Title, body, related))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to render notification for subscription %d", r.SubscriptionID)
		}
		if err := n.sender.Send(ctx, mail.NewMessage(mail.KindStaffNotification, r.Email, subject, html)); err != nil {
			log.Errorf("Failed to queue notification for subscription %d: %v", r.SubscriptionID, err)
		}
	}

	note.Created = n.now()
	if err := n.notifications.SaveStaffNotification(ctx, &note); err != nil {
		return nil, err
	}
	log.Infof("Staff notification %d sent to %d subscribers", note.ID, note.Subscribers)
	return &note, nil
}
