package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jjenkins/cornerwise/internal/config"
	"github.com/jjenkins/cornerwise/internal/model"
	"github.com/jjenkins/cornerwise/internal/store"
)

var proposalsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cornerwise_proposals_recorded_total",
	Help: "Proposal updates applied, by result",
}, []string{"result"})

// Recorder applies importer payloads to stored proposals
type Recorder struct {
	store store.Proposals
	now   func() time.Time
}

// NewRecorder creates a Recorder writing to s
func NewRecorder(s store.Proposals) *Recorder {
	return &Recorder{store: s, now: time.Now}
}

// Apply diffs payload against the stored proposal with the same case number
// and saves the result in one transaction. Naive times in the payload are
// read in region's timezone.
func (r *Recorder) Apply(ctx context.Context, payload *model.ProposalPayload, region config.Region) (*model.ProposalUpdate, error) {
	now := r.now()
	update, err := r.store.RecordUpdate(ctx, payload.CaseNumber, func(rec *model.ProposalRecord) (*model.ProposalUpdate, error) {
		return ApplyUpdate(rec, payload, region, now)
	})
	if err != nil {
		proposalsRecorded.WithLabelValues("failed").Inc()
		return nil, errors.Wrapf(err, "case %s", payload.CaseNumber)
	}

	switch {
	case update.Created:
		proposalsRecorded.WithLabelValues("created").Inc()
	case update.Changed:
		proposalsRecorded.WithLabelValues("changed").Inc()
	default:
		proposalsRecorded.WithLabelValues("unchanged").Inc()
	}
	return update, nil
}

// ApplyUpdate computes what applying payload to rec writes. rec.Proposal is
// nil for a case that has never been imported; no changeset is produced
// for it.
func ApplyUpdate(rec *model.ProposalRecord, payload *model.ProposalPayload, region config.Region, now time.Time) (*model.ProposalUpdate, error) {
	if payload.CaseNumber == "" {
		return nil, errors.WithStack(&model.MissingRequiredProperty{Property: "case_number"})
	}

	exists := rec.Exists()
	var p model.Proposal
	if exists {
		p = *rec.Proposal
	} else {
		p = model.Proposal{CaseNumber: payload.CaseNumber, Created: now}
	}

	var changes model.Changes
	for _, prop := range properties {
		v, ok, err := prop.extract(payload, region)
		if err != nil {
			return nil, malformed(prop.name, err)
		}
		if !ok {
			if prop.required && !exists {
				return nil, errors.WithStack(&model.MissingRequiredProperty{Property: prop.name})
			}
			continue
		}
		if old := prop.get(&p); exists && !sameValue(old, v) {
			changes.Properties = append(changes.Properties, model.Change{Name: prop.name, Old: old, New: v})
		}
		prop.set(&p, v)
	}
	if p.RegionName == "" {
		p.RegionName = region.Name
	}
	p.Modified = now

	attrs, attrChanges, err := applyAttributes(rec, payload.Attributes, p.Updated, region)
	if err != nil {
		return nil, err
	}
	changes.Attributes = attrChanges

	events, err := eventUpserts(payload, p.RegionName, region, now)
	if err != nil {
		return nil, err
	}

	update := &model.ProposalUpdate{
		Proposal:   p,
		Created:    !exists,
		Attributes: attrs,
		Documents:  newDocuments(rec, payload, p.Updated, now),
		Events:     events,
	}
	if exists {
		if changes.Properties == nil {
			changes.Properties = []model.Change{}
		}
		if changes.Attributes == nil {
			changes.Attributes = []model.Change{}
		}
		changes.Version = model.ChangesVersion
		update.Changeset = &model.Changeset{Created: now, Changes: changes}
		update.Changed = !changes.Empty()
	} else {
		update.Changed = true
	}
	return update, nil
}

type attributeState struct {
	attr    model.Attribute
	old     interface{}
	existed bool
}

// applyAttributes overwrites attributes by handle. When a payload repeats a
// handle the last value wins and one change is reported.
func applyAttributes(rec *model.ProposalRecord, payloads []model.AttributePayload, published time.Time, region config.Region) ([]model.Attribute, []model.Change, error) {
	var order []string
	states := make(map[string]*attributeState)

	for _, ap := range payloads {
		name := strings.TrimSpace(ap.Name)
		handle := model.Normalize(name)
		if handle == "" {
			return nil, nil, malformed("attributes", fmt.Errorf("attribute name %q has no letters or digits", ap.Name))
		}

		st, ok := states[handle]
		if !ok {
			st = &attributeState{}
			if stored := rec.AttributeByHandle(handle); stored != nil {
				st.attr = *stored
				st.old = stored.Value()
				st.existed = true
			} else {
				st.attr = model.NewAttribute(name, published)
			}
			states[handle] = st
			order = append(order, handle)
		}
		st.attr.Name = name
		st.attr.Published = published

		switch {
		case ap.Value == nil:
			st.attr.ClearValue()
		case ap.Type == "date":
			t, err := region.ParseTime(*ap.Value)
			if err != nil {
				return nil, nil, malformed("attributes", errors.Wrapf(err, "attribute %q", name))
			}
			st.attr.SetDate(t)
		case ap.Type == "" || ap.Type == "text":
			st.attr.SetText(*ap.Value)
		default:
			return nil, nil, malformed("attributes", fmt.Errorf("attribute %q has unknown type %q", name, ap.Type))
		}
	}

	attrs := make([]model.Attribute, 0, len(order))
	var changes []model.Change
	for _, handle := range order {
		st := states[handle]
		attrs = append(attrs, st.attr)
		if v := st.attr.Value(); !st.existed || !sameValue(st.old, v) {
			if st.existed || v != nil {
				changes = append(changes, model.Change{Name: st.attr.Name, Old: st.old, New: v})
			}
		}
	}
	return attrs, changes, nil
}

// newDocuments returns one document per link not already attached
func newDocuments(rec *model.ProposalRecord, payload *model.ProposalPayload, published, now time.Time) []model.Document {
	seen := make(map[string]bool)
	if rec != nil {
		for _, u := range rec.DocumentURLs {
			seen[u] = true
		}
	}

	var docs []model.Document
	for _, field := range model.DocumentFields {
		for _, link := range payload.Links(field) {
			url := strings.TrimSpace(link.URL)
			if url == "" || seen[url] {
				continue
			}
			seen[url] = true
			pub := published
			docs = append(docs, model.Document{
				URL:       url,
				Title:     link.Title,
				Field:     field,
				Published: &pub,
				Created:   now,
			})
		}
	}
	return docs
}

func eventUpserts(payload *model.ProposalPayload, regionName string, region config.Region, now time.Time) ([]model.EventUpsert, error) {
	var out []model.EventUpsert
	for i, ep := range payload.Events {
		field := fmt.Sprintf("events[%d]", i)
		title := strings.TrimSpace(ep.Title)
		if title == "" {
			return nil, malformed(field, fmt.Errorf("event has no title"))
		}
		start, err := region.ParseTime(ep.Start)
		if err != nil {
			return nil, malformed(field, err)
		}
		dur, err := parseDuration(ep.Duration)
		if err != nil {
			return nil, malformed(field, err)
		}

		ev := model.Event{
			Title:       title,
			Date:        start,
			Duration:    dur,
			Location:    ep.Location,
			RegionName:  ep.RegionName,
			Description: ep.Description,
			Minutes:     ep.AgendaURL,
			Created:     now,
		}
		if ev.RegionName == "" {
			ev.RegionName = regionName
		}
		if ev.Location == "" {
			ev.Location = model.DefaultEventLocation
		}

		var cases []string
		for _, c := range ep.Cases {
			if c = strings.TrimSpace(c); c != "" && c != payload.CaseNumber {
				cases = append(cases, c)
			}
		}
		if len(cases) > 0 {
			log.V(2).Infof("Event %q links %d other cases", title, len(cases))
		}
		out = append(out, model.EventUpsert{Event: ev, CaseNumbers: cases})
	}
	return out, nil
}
