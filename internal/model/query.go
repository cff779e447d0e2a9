package model

import (
	"slices"
	"strings"
	"time"

	"github.com/jjenkins/cornerwise/internal/geo"
)

// ProposalQuery is a conjunction of predicates over proposals. The zero
// value matches everything.
type ProposalQuery struct {
	IDs         []int64     `json:"ids,omitempty"`
	ExcludeIDs  []int64     `json:"exclude_ids,omitempty"`
	CaseNumbers []string    `json:"case_numbers,omitempty"`
	RegionName  string      `json:"region_name,omitempty"`
	Status      string      `json:"status,omitempty"`
	Address     string      `json:"address,omitempty"`
	Near        *geo.Circle `json:"near,omitempty"`
	Within      geo.Polygon `json:"within,omitempty"`
	// Open lower bound on Created
	CreatedAfter *time.Time `json:"created_after,omitempty"`
	// Open lower bound on Updated
	UpdatedAfter *time.Time `json:"updated_after,omitempty"`
	// Closed upper bound on Updated
	UpdatedUntil *time.Time `json:"updated_until,omitempty"`
	Limit        int        `json:"limit,omitempty"`
}

// Validate rejects queries that cannot be executed
func (q *ProposalQuery) Validate() error {
	if q.Near != nil {
		if !q.Near.Center.Valid() {
			return &MalformedQuery{Reason: "near center is not a valid point"}
		}
		if q.Near.Radius <= 0 {
			return &MalformedQuery{Reason: "near radius must be positive"}
		}
	}
	if q.Within != nil && !q.Within.Valid() {
		return &MalformedQuery{Reason: "within polygon needs at least three valid points"}
	}
	if q.UpdatedAfter != nil && q.UpdatedUntil != nil && q.UpdatedUntil.Before(*q.UpdatedAfter) {
		return &MalformedQuery{Reason: "updated_until precedes updated_after"}
	}
	if q.Limit < 0 {
		return &MalformedQuery{Reason: "limit must not be negative"}
	}
	return nil
}

// Matches evaluates the query against p in memory
func (q *ProposalQuery) Matches(p *Proposal) bool {
	if len(q.IDs) > 0 && !slices.Contains(q.IDs, p.ID) {
		return false
	}
	if slices.Contains(q.ExcludeIDs, p.ID) {
		return false
	}
	if len(q.CaseNumbers) > 0 && !slices.Contains(q.CaseNumbers, p.CaseNumber) {
		return false
	}
	if q.RegionName != "" && !strings.EqualFold(q.RegionName, p.RegionName) {
		return false
	}
	if q.Status != "" && !strings.EqualFold(q.Status, p.Status) {
		return false
	}
	if q.Address != "" && !matchesAddress(q.Address, p) {
		return false
	}
	if q.Near != nil && !q.Near.Contains(p.Location) {
		return false
	}
	if q.Within != nil && !q.Within.Contains(p.Location) {
		return false
	}
	if q.CreatedAfter != nil && !p.Created.After(*q.CreatedAfter) {
		return false
	}
	if q.UpdatedAfter != nil && !p.Updated.After(*q.UpdatedAfter) {
		return false
	}
	if q.UpdatedUntil != nil && p.Updated.After(*q.UpdatedUntil) {
		return false
	}
	return true
}

func matchesAddress(addr string, p *Proposal) bool {
	for _, a := range p.AllAddresses() {
		if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(addr)) {
			return true
		}
	}
	return false
}
