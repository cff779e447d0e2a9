package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/pkg/errors"

	"github.com/jjenkins/cornerwise/internal/config"
	"github.com/jjenkins/cornerwise/internal/geo"
	"github.com/jjenkins/cornerwise/internal/model"
	"github.com/jjenkins/cornerwise/internal/store"
)

var (
	somerville = config.DefaultRegions().Get("Somerville, MA")
	t0         = time.Date(2017, 6, 1, 12, 0, 0, 0, time.UTC)
)

func strp(s string) *string        { return &s }
func boolp(b bool) *bool           { return &b }
func f64p(f float64) *float64      { return &f }
func timep(t time.Time) *time.Time { return &t }

// elmStreet returns a complete payload for a fresh case
func elmStreet() *model.ProposalPayload {
	return &model.ProposalPayload{
		CaseNumber:   "PB-2017-01",
		AllAddresses: []string{"12 Elm St"},
		Location:     &model.LocationPayload{Lat: f64p(42.3876), Long: f64p(-71.0995)},
		UpdatedDate:  strp("2017-05-30T10:00:00"),
		Complete:     boolp(false),
		Status:       strp("Filed"),
	}
}

func newRecorder(s store.Proposals, at time.Time) *Recorder {
	r := NewRecorder(s)
	r.now = func() time.Time { return at }
	return r
}

func TestApplyStatusChange(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)

	created, err := newRecorder(s, t0).Apply(ctx, elmStreet(), somerville)
	assert.Equal(t, err, nil)
	assert.Equal(t, created.Created, true)
	assert.Equal(t, created.Changeset == nil, true)
	assert.Equal(t, created.Proposal.RegionName, "Somerville, MA")

	p := elmStreet()
	p.Status = strp("Approved")
	p.Complete = boolp(true)
	update, err := newRecorder(s, t0.Add(time.Hour)).Apply(ctx, p, somerville)
	assert.Equal(t, err, nil)
	assert.Equal(t, update.Created, false)
	assert.Equal(t, update.Changed, true)
	assert.Equal(t, update.Proposal.ID, created.Proposal.ID)
	assert.Equal(t, update.Changeset.Changes.Properties, []model.Change{
		{Name: "status", Old: "Filed", New: "Approved"},
		{Name: "complete", Old: false, New: true},
	})
	assert.Equal(t, len(update.Changeset.Changes.Attributes), 0)

	b, err := model.EncodeChanges(update.Changeset.Changes)
	assert.Equal(t, err, nil)
	assert.Equal(t, string(b), `{"version":1,"properties":[{"name":"status","old":"Filed","new":"Approved"},{"name":"complete","old":false,"new":true}],"attributes":[]}`)
}

func TestApplyTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)

	p := elmStreet()
	p.Summary = strp("Build a porch")
	p.Attributes = []model.AttributePayload{{Name: "Applicant Name", Value: strp("Jane Doe")}}
	p.Decisions = &model.DocumentGroup{Links: []model.DocumentLink{{URL: "http://example.com/d.pdf", Title: "Decision"}}}

	_, err := newRecorder(s, t0).Apply(ctx, p, somerville)
	assert.Equal(t, err, nil)

	again, err := newRecorder(s, t0.Add(time.Hour)).Apply(ctx, p, somerville)
	assert.Equal(t, err, nil)
	assert.Equal(t, again.Changed, false)
	assert.Equal(t, again.Changeset != nil, true)
	assert.Equal(t, again.Changeset.Changes.Properties, []model.Change{})
	assert.Equal(t, again.Changeset.Changes.Attributes, []model.Change{})
	assert.Equal(t, len(again.Documents), 0)
}

func TestApplyNewAttribute(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)

	first, err := newRecorder(s, t0).Apply(ctx, elmStreet(), somerville)
	assert.Equal(t, err, nil)

	p := elmStreet()
	p.Attributes = []model.AttributePayload{{Name: "Applicant Name", Value: strp("Jane Doe")}}
	update, err := newRecorder(s, t0.Add(time.Hour)).Apply(ctx, p, somerville)
	assert.Equal(t, err, nil)
	assert.Equal(t, update.Changeset.Changes.Attributes, []model.Change{
		{Name: "Applicant Name", Old: nil, New: "Jane Doe"},
	})
	assert.Equal(t, len(update.Changeset.Changes.Properties), 0)

	detail, err := s.GetProposal(ctx, first.Proposal.ID)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(detail.Attributes), 1)
	assert.Equal(t, detail.Attributes[0].Handle, "applicant_name")
	assert.Equal(t, detail.Attributes[0].Value(), "Jane Doe")
}

func TestApplyAttributeOverwrite(t *testing.T) {
	rec := &model.ProposalRecord{
		Proposal: &model.Proposal{ID: 1, CaseNumber: "PB-2017-01", Address: "12 Elm St"},
		Attributes: []model.Attribute{
			{ID: 7, ProposalID: 1, Name: "Zoning", Handle: "zoning", TextValue: strp("RA")},
			{ID: 8, ProposalID: 1, Name: "Ward", Handle: "ward", TextValue: strp("3")},
		},
	}
	p := &model.ProposalPayload{
		CaseNumber: "PB-2017-01",
		Attributes: []model.AttributePayload{
			{Name: "zoning", Value: strp("RB")},
			{Name: "Ward", Value: strp("3")},
			{Name: "Zoning", Value: strp("RC")},
			{Name: "Hearing Date", Value: strp("2017-06-15"), Type: "date"},
		},
	}

	update, err := ApplyUpdate(rec, p, somerville, t0)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(update.Attributes), 3)
	assert.Equal(t, update.Attributes[0].ID, int64(7))
	assert.Equal(t, update.Attributes[0].Value(), "RC")
	hearing := time.Date(2017, 6, 15, 4, 0, 0, 0, time.UTC)
	assert.Equal(t, update.Attributes[2].DateValue.Equal(hearing), true)

	changes := update.Changeset.Changes.Attributes
	assert.Equal(t, len(changes), 2)
	assert.Equal(t, changes[0], model.Change{Name: "Zoning", Old: "RA", New: "RC"})
	assert.Equal(t, changes[1].Name, "Hearing Date")
	assert.Equal(t, changes[1].Old, nil)
}

func TestApplyMissingRequired(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)

	p := elmStreet()
	p.Status = nil
	_, err := newRecorder(s, t0).Apply(ctx, p, somerville)
	assert.Equal(t, model.IsMissingRequired(err), true)

	var missing *model.MissingRequiredProperty
	assert.Equal(t, errors.As(err, &missing), true)
	assert.Equal(t, missing.Property, "status")

	found, err := s.FindProposals(ctx, model.ProposalQuery{})
	assert.Equal(t, err, nil)
	assert.Equal(t, len(found), 0)
}

func TestApplyOmittedOptionalKeepsValue(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)

	p := elmStreet()
	p.Summary = strp("Build a porch")
	_, err := newRecorder(s, t0).Apply(ctx, p, somerville)
	assert.Equal(t, err, nil)

	// Required properties may be omitted once stored
	update, err := newRecorder(s, t0.Add(time.Hour)).Apply(ctx, &model.ProposalPayload{CaseNumber: "PB-2017-01"}, somerville)
	assert.Equal(t, err, nil)
	assert.Equal(t, update.Proposal.Summary, "Build a porch")
	assert.Equal(t, update.Proposal.Status, "Filed")
	assert.Equal(t, update.Changed, false)
}

func TestApplyMalformedLocation(t *testing.T) {
	p := elmStreet()
	p.Location = &model.LocationPayload{Lat: f64p(142), Long: f64p(-71)}
	_, err := ApplyUpdate(&model.ProposalRecord{}, p, somerville, t0)
	assert.Equal(t, model.IsMalformedPayload(err), true)

	p = elmStreet()
	p.Location = &model.LocationPayload{Lat: f64p(42)}
	_, err = ApplyUpdate(&model.ProposalRecord{}, p, somerville, t0)
	assert.Equal(t, model.IsMalformedPayload(err), true)

	p = elmStreet()
	p.AllAddresses = []string{"  "}
	_, err = ApplyUpdate(&model.ProposalRecord{}, p, somerville, t0)
	assert.Equal(t, model.IsMalformedPayload(err), true)
}

func TestApplyLocalizesNaiveTimes(t *testing.T) {
	update, err := ApplyUpdate(&model.ProposalRecord{}, elmStreet(), somerville, t0)
	assert.Equal(t, err, nil)
	assert.Equal(t, update.Proposal.Updated.Equal(time.Date(2017, 5, 30, 14, 0, 0, 0, time.UTC)), true)
	assert.Equal(t, update.Proposal.Location, geo.Point{Lat: 42.3876, Lng: -71.0995})
}

func TestApplyOtherAddressesAndSummary(t *testing.T) {
	p := elmStreet()
	p.AllAddresses = []string{"12 Elm St", " 14 Elm St ", "", "16 Elm St"}
	long := make([]rune, model.MaxSummaryLength+10)
	for i := range long {
		long[i] = 'é'
	}
	p.Summary = strp(string(long))

	update, err := ApplyUpdate(&model.ProposalRecord{}, p, somerville, t0)
	assert.Equal(t, err, nil)
	assert.Equal(t, update.Proposal.OtherAddresses, "14 Elm St;16 Elm St")
	assert.Equal(t, len([]rune(update.Proposal.Summary)), model.MaxSummaryLength)
}

func TestApplyDocumentsDeduplicated(t *testing.T) {
	rec := &model.ProposalRecord{
		Proposal:     &model.Proposal{ID: 1, CaseNumber: "PB-2017-01"},
		DocumentURLs: []string{"http://example.com/old.pdf"},
	}
	p := &model.ProposalPayload{
		CaseNumber: "PB-2017-01",
		Decisions: &model.DocumentGroup{Links: []model.DocumentLink{
			{URL: "http://example.com/old.pdf", Title: "Old"},
			{URL: "http://example.com/new.pdf", Title: "New"},
		}},
		Reports: &model.DocumentGroup{Links: []model.DocumentLink{
			{URL: "http://example.com/new.pdf", Title: "Again"},
			{URL: "http://example.com/report.pdf", Title: "Report"},
		}},
	}

	update, err := ApplyUpdate(rec, p, somerville, t0)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(update.Documents), 2)
	assert.Equal(t, update.Documents[0].URL, "http://example.com/new.pdf")
	assert.Equal(t, update.Documents[0].Field, model.FieldDecisions)
	assert.Equal(t, update.Documents[1].Field, model.FieldReports)
	assert.Equal(t, update.Documents[1].Created, t0)
}

func TestApplyEventsLinkKnownCases(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)

	other := elmStreet()
	other.CaseNumber = "ZBA-2017-09"
	other.AllAddresses = []string{"3 Oak St"}
	o, err := newRecorder(s, t0).Apply(ctx, other, somerville)
	assert.Equal(t, err, nil)

	p := elmStreet()
	p.Events = []model.EventPayload{{
		Title:     "Planning Board",
		Start:     "2017-06-15T18:00:00",
		Cases:     []string{"ZBA-2017-09", "NOPE-1"},
		Duration:  json.RawMessage(`"1:30"`),
		AgendaURL: "http://example.com/agenda.pdf",
	}}
	update, err := newRecorder(s, t0).Apply(ctx, p, somerville)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(update.Events), 1)

	ev := update.Events[0].Event
	assert.Equal(t, ev.RegionName, "Somerville, MA")
	assert.Equal(t, ev.Location, model.DefaultEventLocation)
	assert.Equal(t, ev.Minutes, "http://example.com/agenda.pdf")
	assert.Equal(t, *ev.Duration, 90*time.Minute)

	detail, err := s.GetProposal(ctx, o.Proposal.ID)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(detail.Events), 1)
	assert.Equal(t, detail.Events[0].Title, "Planning Board")
}

func TestApplyEventWithoutTitle(t *testing.T) {
	p := elmStreet()
	p.Events = []model.EventPayload{{Start: "2017-06-15T18:00:00"}}
	_, err := ApplyUpdate(&model.ProposalRecord{}, p, somerville, t0)
	assert.Equal(t, model.IsMalformedPayload(err), true)
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		`5400`:       90 * time.Minute,
		`"2h"`:       2 * time.Hour,
		`"01:15"`:    75 * time.Minute,
		`"00:00:30"`: 30 * time.Second,
	}
	for raw, want := range cases {
		d, err := parseDuration(json.RawMessage(raw))
		assert.Equal(t, err, nil)
		assert.Equal(t, *d, want)
	}

	d, err := parseDuration(json.RawMessage(`null`))
	assert.Equal(t, err, nil)
	assert.Equal(t, d == nil, true)

	_, err = parseDuration(json.RawMessage(`"soon"`))
	assert.NotEqual(t, err, nil)
}
