package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jjenkins/cornerwise/internal/blob"
	"github.com/jjenkins/cornerwise/internal/geo"
	"github.com/jjenkins/cornerwise/internal/model"
)

type metricValue struct {
	name  string
	value string
	at    time.Time
}

// MemoryStore is a Persister that keeps everything in process memory. It
// evaluates spatial predicates with package geo.
type MemoryStore struct {
	mu sync.RWMutex

	blobs  blob.Store
	nextID int64

	proposals     map[int64]*model.Proposal
	byCase        map[string]int64
	attributes    map[int64][]model.Attribute
	documents     []model.Document
	images        []model.Image
	events        []model.Event
	eventLinks    map[int64]map[int64]bool
	changesets    []model.Changeset
	subscriptions []model.Subscription
	runs          map[string]time.Time
	notifications []model.StaffNotification
	metrics       []metricValue
}

// NewMemoryStore returns an empty store. blobs may be nil.
func NewMemoryStore(blobs blob.Store) *MemoryStore {
	return &MemoryStore{
		blobs:      blobs,
		proposals:  make(map[int64]*model.Proposal),
		byCase:     make(map[string]int64),
		attributes: make(map[int64][]model.Attribute),
		eventLinks: make(map[int64]map[int64]bool),
		runs:       make(map[string]time.Time),
	}
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

// RecordUpdate runs apply against the stored record for caseNumber and
// saves the result while holding the store lock
func (m *MemoryStore) RecordUpdate(ctx context.Context, caseNumber string, apply model.ApplyFunc) (*model.ProposalUpdate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := &model.ProposalRecord{}
	if id, ok := m.byCase[caseNumber]; ok {
		p := *m.proposals[id]
		rec.Proposal = &p
		rec.Attributes = append([]model.Attribute(nil), m.attributes[id]...)
		for _, d := range m.documents {
			if d.ProposalID == id {
				rec.DocumentURLs = append(rec.DocumentURLs, d.URL)
			}
		}
	}

	update, err := apply(rec)
	if err != nil {
		return nil, err
	}

	p := update.Proposal
	if id, ok := m.byCase[p.CaseNumber]; ok {
		p.ID = id
		p.Created = m.proposals[id].Created
	} else {
		p.ID = m.id()
		m.byCase[p.CaseNumber] = p.ID
	}
	m.proposals[p.ID] = &p
	update.Proposal = p

	for i := range update.Attributes {
		a := &update.Attributes[i]
		a.ProposalID = p.ID
		m.saveAttribute(a)
	}

	for i := range update.Documents {
		d := &update.Documents[i]
		d.ProposalID = p.ID
		if m.hasDocument(p.ID, d.URL) {
			continue
		}
		d.ID = m.id()
		m.documents = append(m.documents, *d)
	}

	for i := range update.Events {
		m.upsertEvent(p.ID, &update.Events[i])
	}

	if cs := update.Changeset; cs != nil {
		cs.ID = m.id()
		cs.ProposalID = p.ID
		cs.Changes.Version = model.ChangesVersion
		m.changesets = append(m.changesets, *cs)
	}

	return update, nil
}

func (m *MemoryStore) saveAttribute(a *model.Attribute) {
	attrs := m.attributes[a.ProposalID]
	for i := range attrs {
		if attrs[i].Handle == a.Handle {
			a.ID = attrs[i].ID
			attrs[i] = *a
			return
		}
	}
	a.ID = m.id()
	m.attributes[a.ProposalID] = append(attrs, *a)
}

func (m *MemoryStore) hasDocument(proposalID int64, url string) bool {
	for _, d := range m.documents {
		if d.ProposalID == proposalID && d.URL == url {
			return true
		}
	}
	return false
}

func (m *MemoryStore) upsertEvent(proposalID int64, eu *model.EventUpsert) {
	e := &eu.Event
	found := false
	for i := range m.events {
		if m.events[i].SameAs(e) {
			stored := &m.events[i]
			if e.Duration != nil {
				stored.Duration = e.Duration
			}
			stored.Location = e.Location
			stored.Description = e.Description
			stored.Minutes = e.Minutes
			e.ID, e.Created, e.Duration = stored.ID, stored.Created, stored.Duration
			found = true
			break
		}
	}
	if !found {
		e.ID = m.id()
		m.events = append(m.events, *e)
	}

	links := m.eventLinks[e.ID]
	if links == nil {
		links = make(map[int64]bool)
		m.eventLinks[e.ID] = links
	}
	links[proposalID] = true
	for _, cn := range eu.CaseNumbers {
		if id, ok := m.byCase[cn]; ok {
			links[id] = true
		}
	}
}

// FindProposals returns the proposals matching q, most recently updated first
func (m *MemoryStore) FindProposals(ctx context.Context, q model.ProposalQuery) ([]model.Proposal, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Proposal
	for _, p := range m.proposals {
		if q.Matches(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Updated.Equal(out[j].Updated) {
			return out[i].Updated.After(out[j].Updated)
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// GetProposal returns a proposal with everything attached to it
func (m *MemoryStore) GetProposal(ctx context.Context, id int64) (*model.ProposalDetail, error) {
	m.mu.RLock()
	p, ok := m.proposals[id]
	if !ok {
		m.mu.RUnlock()
		return nil, model.ErrNotFound
	}
	detail := &model.ProposalDetail{
		Proposal:   *p,
		Attributes: append([]model.Attribute(nil), m.attributes[id]...),
	}
	for _, e := range m.events {
		if m.eventLinks[e.ID][id] {
			detail.Events = append(detail.Events, e)
		}
	}
	m.mu.RUnlock()

	sort.Slice(detail.Attributes, func(i, j int) bool { return detail.Attributes[i].Name < detail.Attributes[j].Name })
	sort.Slice(detail.Events, func(i, j int) bool { return detail.Events[i].Date.Before(detail.Events[j].Date) })

	var err error
	ids := []int64{id}
	if detail.Documents, err = m.DocumentsFor(ctx, ids, time.Time{}, nil); err != nil {
		return nil, err
	}
	if detail.Images, err = m.ImagesFor(ctx, ids, time.Time{}, nil); err != nil {
		return nil, err
	}
	if detail.Changesets, err = m.ChangesetsFor(ctx, ids, time.Time{}); err != nil {
		return nil, err
	}
	return detail, nil
}

func idSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func inWindow(t, since time.Time, until *time.Time) bool {
	return t.After(since) && (until == nil || !t.After(*until))
}

// ChangesetsFor returns changesets created after since, oldest first
func (m *MemoryStore) ChangesetsFor(ctx context.Context, ids []int64, since time.Time) ([]model.Changeset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := idSet(ids)
	var out []model.Changeset
	for _, cs := range m.changesets {
		if set[cs.ProposalID] && cs.Created.After(since) {
			out = append(out, cs)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.Before(out[j].Created)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DocumentsFor returns documents created in (since, until]
func (m *MemoryStore) DocumentsFor(ctx context.Context, ids []int64, since time.Time, until *time.Time) ([]model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := idSet(ids)
	var out []model.Document
	for _, d := range m.documents {
		if set[d.ProposalID] && inWindow(d.Created, since, until) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out, nil
}

// ImagesFor returns images created in (since, until], by priority
func (m *MemoryStore) ImagesFor(ctx context.Context, ids []int64, since time.Time, until *time.Time) ([]model.Image, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := idSet(ids)
	var out []model.Image
	for _, img := range m.images {
		if set[img.ProposalID] && inWindow(img.Created, since, until) {
			out = append(out, img)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out, nil
}

// AddImage inserts an image, or refreshes one with the same URL
func (m *MemoryStore) AddImage(ctx context.Context, img *model.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.proposals[img.ProposalID]; !ok {
		return model.ErrNotFound
	}
	if img.Created.IsZero() {
		img.Created = time.Now()
	}
	for i := range m.images {
		if m.images[i].URL == img.URL {
			stored := &m.images[i]
			stored.ImagePath = img.ImagePath
			stored.ThumbnailPath = img.ThumbnailPath
			stored.Width, stored.Height = img.Width, img.Height
			stored.Priority = img.Priority
			img.ID, img.Created = stored.ID, stored.Created
			return nil
		}
	}
	img.ID = m.id()
	m.images = append(m.images, *img)
	return nil
}

func (m *MemoryStore) release(ctx context.Context, paths []string) error {
	if m.blobs == nil || len(paths) == 0 {
		return nil
	}
	return m.blobs.Release(ctx, paths...)
}

// DeleteDocument removes a document and the images extracted from it,
// releasing their cached files first
func (m *MemoryStore) DeleteDocument(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i := range m.documents {
		if m.documents[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.ErrNotFound
	}

	paths := m.documents[idx].BlobPaths()
	var keep []model.Image
	for _, img := range m.images {
		if img.DocumentID != nil && *img.DocumentID == id {
			paths = append(paths, img.BlobPaths()...)
			continue
		}
		keep = append(keep, img)
	}
	if err := m.release(ctx, paths); err != nil {
		return err
	}

	m.images = keep
	m.documents = append(m.documents[:idx], m.documents[idx+1:]...)
	return nil
}

// DeleteImage removes an image, releasing its cached files first
func (m *MemoryStore) DeleteImage(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.images {
		if m.images[i].ID != id {
			continue
		}
		if err := m.release(ctx, m.images[i].BlobPaths()); err != nil {
			return err
		}
		m.images = append(m.images[:i], m.images[i+1:]...)
		return nil
	}
	return model.ErrNotFound
}

// EventsCreated returns events created in (since, until]
func (m *MemoryStore) EventsCreated(ctx context.Context, since time.Time, until *time.Time, region string) ([]model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Event
	for _, e := range m.events {
		if !inWindow(e.Created, since, until) {
			continue
		}
		if region != "" && !strings.EqualFold(region, e.RegionName) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out, nil
}

// UpcomingEvents returns events scheduled after the given time
func (m *MemoryStore) UpcomingEvents(ctx context.Context, after time.Time, region string, limit int) ([]model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Event
	for _, e := range m.events {
		if e.Date.After(after) && (region == "" || strings.EqualFold(region, e.RegionName)) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SubscriptionsNear returns active subscriptions centered within radius of p
func (m *MemoryStore) SubscriptionsNear(ctx context.Context, p geo.Point, radius geo.Distance) ([]model.Subscription, error) {
	return m.filterSubscriptions(func(s *model.Subscription) bool {
		return s.Center != nil && geo.Between(*s.Center, p) <= radius
	}), nil
}

// SubscriptionsContaining returns active subscriptions whose polygon
// contains p
func (m *MemoryStore) SubscriptionsContaining(ctx context.Context, p geo.Point) ([]model.Subscription, error) {
	return m.filterSubscriptions(func(s *model.Subscription) bool {
		return len(s.Polygon) > 0 && s.Polygon.Contains(p)
	}), nil
}

// ActiveSubscriptions returns every active subscription grouped by user
func (m *MemoryStore) ActiveSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	subs := m.filterSubscriptions(func(*model.Subscription) bool { return true })
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].UserID < subs[j].UserID })
	return subs, nil
}

func (m *MemoryStore) filterSubscriptions(keep func(*model.Subscription) bool) []model.Subscription {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Subscription
	for i := range m.subscriptions {
		s := &m.subscriptions[i]
		if s.Active && keep(s) {
			out = append(out, *s)
		}
	}
	return out
}

// SaveSubscription inserts a subscription, or replaces it when it has an ID
func (m *MemoryStore) SaveSubscription(ctx context.Context, sub *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub.Created.IsZero() {
		sub.Created = time.Now()
	}
	if sub.ID == 0 {
		sub.ID = m.id()
		m.subscriptions = append(m.subscriptions, *sub)
		return nil
	}
	for i := range m.subscriptions {
		if m.subscriptions[i].ID == sub.ID {
			sub.Created = m.subscriptions[i].Created
			sub.UserID = m.subscriptions[i].UserID
			m.subscriptions[i] = *sub
			return nil
		}
	}
	return model.ErrNotFound
}

// LastRun returns when the importer last ran
func (m *MemoryStore) LastRun(ctx context.Context, importer string) (*time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	at, ok := m.runs[importer]
	if !ok {
		return nil, nil
	}
	return &at, nil
}

// SaveRun records a completed run
func (m *MemoryStore) SaveRun(ctx context.Context, importer string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[importer] = at
	return nil
}

// SaveStaffNotification records n and sets its ID
func (m *MemoryStore) SaveStaffNotification(ctx context.Context, n *model.StaffNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n.Created.IsZero() {
		n.Created = time.Now()
	}
	n.ID = m.id()
	m.notifications = append(m.notifications, *n)
	return nil
}

// StaffNotifications returns the recorded notifications, oldest first
func (m *MemoryStore) StaffNotifications() []model.StaffNotification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.StaffNotification(nil), m.notifications...)
}

// SystemMetrics counts what is stored
func (m *MemoryStore) SystemMetrics(ctx context.Context) (*model.SystemMetrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sm := &model.SystemMetrics{
		TotalProposals:  len(m.proposals),
		TotalChangesets: len(m.changesets),
		TotalEvents:     len(m.events),
		TotalDocuments:  len(m.documents),
		TotalImages:     len(m.images),
	}
	perRegion := make(map[string]int)
	for _, p := range m.proposals {
		if !p.Complete {
			sm.OpenProposals++
		}
		perRegion[p.RegionName]++
	}
	for _, s := range m.subscriptions {
		if s.Active {
			sm.ActiveSubscriptions++
		}
	}
	for region, n := range perRegion {
		if n > sm.BusiestRegionProposals || (n == sm.BusiestRegionProposals && region < sm.BusiestRegion) {
			sm.BusiestRegion, sm.BusiestRegionProposals = region, n
		}
	}
	return sm, nil
}

// SaveMetric stores a single metric value
func (m *MemoryStore) SaveMetric(ctx context.Context, name, value string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = append(m.metrics, metricValue{name: name, value: value, at: at})
	return nil
}

// LatestMetrics retrieves the most recent value of each metric
func (m *MemoryStore) LatestMetrics(ctx context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := make(map[string]metricValue)
	for _, mv := range m.metrics {
		if cur, ok := latest[mv.name]; !ok || !mv.at.Before(cur.at) {
			latest[mv.name] = mv
		}
	}
	out := make(map[string]string, len(latest))
	for name, mv := range latest {
		out[name] = mv.value
	}
	return out, nil
}
