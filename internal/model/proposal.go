// Package model contains the records Cornerwise imports, diffs and summarizes.
package model

import (
	"strings"
	"time"

	"github.com/jjenkins/cornerwise/internal/geo"
)

// MaxSummaryLength bounds Proposal.Summary
const MaxSummaryLength = 1024

// Proposal is a municipal planning case
type Proposal struct {
	ID             int64
	CaseNumber     string
	Address        string
	OtherAddresses string
	Location       geo.Point
	RegionName     string
	Complete       bool
	Status         string
	Summary        string
	Description    string
	Source         string
	// Updated is the last time the source reported a change
	Updated time.Time
	// Modified is the last time the row was saved locally
	Modified time.Time
	Created  time.Time
}

// AllAddresses returns the primary address followed by the secondary ones
func (p *Proposal) AllAddresses() []string {
	addrs := []string{p.Address}
	if p.OtherAddresses != "" {
		addrs = append(addrs, strings.Split(p.OtherAddresses, ";")...)
	}
	return addrs
}

// ProposalRecord is the stored state a change is computed against. A nil
// Proposal means the case number has never been imported.
type ProposalRecord struct {
	Proposal     *Proposal
	Attributes   []Attribute
	DocumentURLs []string
}

// Exists reports whether the record was loaded from the store
func (r *ProposalRecord) Exists() bool {
	return r != nil && r.Proposal != nil
}

// AttributeByHandle returns the stored attribute with the given handle
func (r *ProposalRecord) AttributeByHandle(handle string) *Attribute {
	if r == nil {
		return nil
	}
	for i := range r.Attributes {
		if r.Attributes[i].Handle == handle {
			return &r.Attributes[i]
		}
	}
	return nil
}

// EventUpsert is an event to match or create, plus the case numbers it covers
type EventUpsert struct {
	Event       Event
	CaseNumbers []string
}

// ProposalUpdate is everything one import of one case writes
type ProposalUpdate struct {
	Proposal   Proposal
	Created    bool
	Changed    bool
	Attributes []Attribute
	Documents  []Document
	Events     []EventUpsert
	// Changeset is nil when the proposal was created by this update
	Changeset *Changeset
}

// ApplyFunc computes an update from the stored record. Stores call it while
// holding the proposal's transaction.
type ApplyFunc func(rec *ProposalRecord) (*ProposalUpdate, error)

// ProposalDetail is a proposal with everything attached to it
type ProposalDetail struct {
	Proposal   Proposal
	Attributes []Attribute
	Documents  []Document
	Images     []Image
	Events     []Event
	Changesets []Changeset
}

// ProposalView is the serialized form used in API responses and summaries
type ProposalView struct {
	ID             int64       `json:"id"`
	CaseNumber     string      `json:"case_number"`
	Address        string      `json:"address"`
	OtherAddresses []string    `json:"other_addresses,omitempty"`
	Location       geo.Point   `json:"location"`
	RegionName     string      `json:"region_name"`
	Status         string      `json:"status"`
	Complete       bool        `json:"complete"`
	Summary        string      `json:"summary,omitempty"`
	Description    string      `json:"description,omitempty"`
	Source         string      `json:"source,omitempty"`
	Updated        time.Time   `json:"updated"`
	Created        time.Time   `json:"created"`
	Images         []ImageView `json:"images,omitempty"`
}

// View converts the proposal to its serialized form
func (p *Proposal) View() ProposalView {
	v := ProposalView{
		ID:          p.ID,
		CaseNumber:  p.CaseNumber,
		Address:     p.Address,
		Location:    p.Location,
		RegionName:  p.RegionName,
		Status:      p.Status,
		Complete:    p.Complete,
		Summary:     p.Summary,
		Description: p.Description,
		Source:      p.Source,
		Updated:     p.Updated,
		Created:     p.Created,
	}
	if p.OtherAddresses != "" {
		v.OtherAddresses = strings.Split(p.OtherAddresses, ";")
	}
	return v
}
