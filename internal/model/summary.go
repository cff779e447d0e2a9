package model

import (
	"bytes"
	"encoding/json"
	"slices"
	"strconv"
	"time"
)

// SummaryEntry describes what happened to one proposal in a window
type SummaryEntry struct {
	ProposalID    int64          `json:"-"`
	Proposal      ProposalView   `json:"proposal"`
	New           bool           `json:"new"`
	Properties    []Change       `json:"properties,omitempty"`
	Attributes    []Change       `json:"attributes,omitempty"`
	Documents     []DocumentView `json:"documents,omitempty"`
	Images        []ImageView    `json:"images,omitempty"`
	Subscriptions []int64        `json:"subscriptions,omitempty"`
}

// HasSubscription reports whether id is already listed
func (e *SummaryEntry) HasSubscription(id int64) bool {
	return slices.Contains(e.Subscriptions, id)
}

// EntryMap is an insertion-ordered map of proposal id to entry
type EntryMap struct {
	keys    []int64
	entries map[int64]*SummaryEntry
}

// NewEntryMap returns an empty map
func NewEntryMap() *EntryMap {
	return &EntryMap{entries: make(map[int64]*SummaryEntry)}
}

// Set inserts or replaces the entry for id. Replacing keeps the position.
func (m *EntryMap) Set(id int64, e *SummaryEntry) {
	if _, ok := m.entries[id]; !ok {
		m.keys = append(m.keys, id)
	}
	m.entries[id] = e
}

// Get returns the entry for id
func (m *EntryMap) Get(id int64) (*SummaryEntry, bool) {
	e, ok := m.entries[id]
	return e, ok
}

// Delete removes the entry for id
func (m *EntryMap) Delete(id int64) {
	if _, ok := m.entries[id]; !ok {
		return
	}
	delete(m.entries, id)
	for i, k := range m.keys {
		if k == id {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries
func (m *EntryMap) Len() int {
	return len(m.keys)
}

// Keys returns the proposal ids in insertion order
func (m *EntryMap) Keys() []int64 {
	return append([]int64(nil), m.keys...)
}

// Entries returns the entries in insertion order
func (m *EntryMap) Entries() []*SummaryEntry {
	out := make([]*SummaryEntry, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.entries[k])
	}
	return out
}

// MarshalJSON writes a JSON object keyed by proposal id, preserving order
func (m *EntryMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(strconv.FormatInt(k, 10)))
		buf.WriteByte(':')
		b, err := json.Marshal(m.entries[k])
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Summary is the set of new and updated proposals relevant to a query
type Summary struct {
	Changes *EntryMap `json:"changes"`
	New     int       `json:"new"`
	Updated int       `json:"updated"`
	Total   int       `json:"total"`
	// Unix seconds; End is nil for an unbounded window
	Start float64  `json:"start"`
	End   *float64 `json:"end"`
}

// NewSummary returns an empty summary for the window
func NewSummary(since time.Time, until *time.Time) *Summary {
	s := &Summary{
		Changes: NewEntryMap(),
		Start:   Timestamp(since),
	}
	if until != nil {
		end := Timestamp(*until)
		s.End = &end
	}
	return s
}

// Timestamp converts t to fractional unix seconds
func Timestamp(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

// SubscriptionSummary pairs a summary with the subscription that produced
// it. Subscription may be nil.
type SubscriptionSummary struct {
	Subscription *Subscription
	Summary      *Summary
}
