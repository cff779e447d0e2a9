package model

import (
	"fmt"
	"time"

	"github.com/jjenkins/cornerwise/internal/geo"
)

// Subscription is a user's standing interest in an area
type Subscription struct {
	ID       int64
	UserID   int64
	Email    string
	SiteName string
	Active   bool
	Created  time.Time
	// Geofence: a center and radius, or a polygon
	Center  *geo.Point
	Radius  geo.Distance
	Polygon geo.Polygon
	// Query overrides the geofence when summarizing updates
	Query *ProposalQuery
}

// ProposalQuery returns the query selecting proposals this subscription
// cares about, or nil when it has neither a query nor a geofence
func (s *Subscription) ProposalQuery() *ProposalQuery {
	switch {
	case s.Query != nil:
		q := *s.Query
		return &q
	case s.Center != nil && s.Radius > 0:
		return &ProposalQuery{Near: &geo.Circle{Center: *s.Center, Radius: s.Radius}}
	case len(s.Polygon) > 0:
		return &ProposalQuery{Within: s.Polygon}
	default:
		return nil
	}
}

// Candidate is something a subscriber may need to hear about: a proposal
// or a geocoded address
type Candidate struct {
	Proposal *Proposal
	Address  string
	Point    geo.Point
}

// ProposalCandidate wraps a proposal at its own location
func ProposalCandidate(p *Proposal) Candidate {
	return Candidate{Proposal: p, Point: p.Location}
}

// Label returns the text used for the candidate in messages
func (c Candidate) Label() string {
	if c.Proposal != nil {
		return fmt.Sprintf("%s (%s)", c.Proposal.Address, c.Proposal.CaseNumber)
	}
	return c.Address
}

// SubscriberMatch is a subscription with the candidates it matched
type SubscriberMatch struct {
	Subscription Subscription
	Related      []Candidate
}

// SubscriberMatches maps subscriptions to matched candidates, in the
// order subscriptions were first seen
type SubscriberMatches struct {
	order []int64
	byID  map[int64]*SubscriberMatch
}

// NewSubscriberMatches returns an empty mapping
func NewSubscriberMatches() *SubscriberMatches {
	return &SubscriberMatches{byID: make(map[int64]*SubscriberMatch)}
}

// Add records that sub matched c
func (m *SubscriberMatches) Add(sub Subscription, c Candidate) {
	match, ok := m.byID[sub.ID]
	if !ok {
		match = &SubscriberMatch{Subscription: sub}
		m.byID[sub.ID] = match
		m.order = append(m.order, sub.ID)
	}
	match.Related = append(match.Related, c)
}

// Get returns the match for a subscription id
func (m *SubscriberMatches) Get(id int64) (*SubscriberMatch, bool) {
	match, ok := m.byID[id]
	return match, ok
}

// List returns the matches in first-seen order
func (m *SubscriberMatches) List() []*SubscriberMatch {
	out := make([]*SubscriberMatch, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	return out
}

// Len returns the number of matched subscriptions
func (m *SubscriberMatches) Len() int {
	return len(m.order)
}

// StaffNotification records a message staff sent to nearby subscribers
type StaffNotification struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Sender      string       `json:"sender"`
	Addresses   string       `json:"addresses"`
	ProposalIDs []int64      `json:"proposal_ids"`
	Radius      geo.Distance `json:"radius"`
	Points      []geo.Point  `json:"points"`
	Message     string       `json:"message"`
	Subscribers int          `json:"subscribers"`
	Region      string       `json:"region"`
	Created     time.Time    `json:"created"`
}

// GeocodeFailure is an address that could not be placed
type GeocodeFailure struct {
	Address string `json:"address"`
	Reason  string `json:"reason"`
}

// DraftRecipient is one subscriber a draft will be delivered to, with the
// labels of the proposals and addresses it matched
type DraftRecipient struct {
	SubscriptionID int64    `json:"subscription_id"`
	Email          string   `json:"email"`
	SiteName       string   `json:"site_name"`
	Proposals      []string `json:"proposals,omitempty"`
	Addresses      []string `json:"addresses,omitempty"`
}

// NotificationDraft is a prepared staff notification awaiting confirmation
type NotificationDraft struct {
	ID           string            `json:"id"`
	Notification StaffNotification `json:"notification"`
	Greeting     string            `json:"greeting"`
	Recipients   []DraftRecipient  `json:"recipients"`
	Failures     []GeocodeFailure  `json:"failures,omitempty"`
	// Example is the message as the first recipient will see it
	Example string    `json:"example"`
	Created time.Time `json:"created"`
}
