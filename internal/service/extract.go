package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/jjenkins/cornerwise/internal/config"
	"github.com/jjenkins/cornerwise/internal/geo"
	"github.com/jjenkins/cornerwise/internal/model"
)

// property is one tracked proposal field. extract reports ok=false when the
// payload omits the field.
type property struct {
	name     string
	required bool
	extract  func(p *model.ProposalPayload, region config.Region) (v interface{}, ok bool, err error)
	get      func(p *model.Proposal) interface{}
	set      func(p *model.Proposal, v interface{})
}

func stringProperty(name string, required bool, field func(*model.ProposalPayload) *string, get func(*model.Proposal) *string) property {
	return property{
		name:     name,
		required: required,
		extract: func(p *model.ProposalPayload, _ config.Region) (interface{}, bool, error) {
			s := field(p)
			if s == nil {
				return nil, false, nil
			}
			return *s, true, nil
		},
		get: func(p *model.Proposal) interface{} { return *get(p) },
		set: func(p *model.Proposal, v interface{}) { *get(p) = v.(string) },
	}
}

// properties is evaluated in order; changesets list changes in this order
var properties = []property{
	{
		name:     "address",
		required: true,
		extract: func(p *model.ProposalPayload, _ config.Region) (interface{}, bool, error) {
			if len(p.AllAddresses) == 0 {
				return nil, false, nil
			}
			addr := strings.TrimSpace(p.AllAddresses[0])
			if addr == "" {
				return nil, false, fmt.Errorf("first address is empty")
			}
			return addr, true, nil
		},
		get: func(p *model.Proposal) interface{} { return p.Address },
		set: func(p *model.Proposal, v interface{}) { p.Address = v.(string) },
	},
	{
		name: "other_addresses",
		extract: func(p *model.ProposalPayload, _ config.Region) (interface{}, bool, error) {
			if len(p.AllAddresses) == 0 {
				return nil, false, nil
			}
			var rest []string
			for _, a := range p.AllAddresses[1:] {
				if a = strings.TrimSpace(a); a != "" {
					rest = append(rest, a)
				}
			}
			return strings.Join(rest, ";"), true, nil
		},
		get: func(p *model.Proposal) interface{} { return p.OtherAddresses },
		set: func(p *model.Proposal, v interface{}) { p.OtherAddresses = v.(string) },
	},
	{
		name:     "location",
		required: true,
		extract: func(p *model.ProposalPayload, _ config.Region) (interface{}, bool, error) {
			if p.Location == nil {
				return nil, false, nil
			}
			if p.Location.Lat == nil || p.Location.Long == nil {
				return nil, false, fmt.Errorf("location needs lat and long")
			}
			pt := geo.Point{Lat: *p.Location.Lat, Lng: *p.Location.Long}
			if !pt.Valid() {
				return nil, false, fmt.Errorf("location %s is out of range", pt)
			}
			return pt, true, nil
		},
		get: func(p *model.Proposal) interface{} { return p.Location },
		set: func(p *model.Proposal, v interface{}) { p.Location = v.(geo.Point) },
	},
	{
		name: "summary",
		extract: func(p *model.ProposalPayload, _ config.Region) (interface{}, bool, error) {
			if p.Summary == nil {
				return nil, false, nil
			}
			return truncate(*p.Summary, model.MaxSummaryLength), true, nil
		},
		get: func(p *model.Proposal) interface{} { return p.Summary },
		set: func(p *model.Proposal, v interface{}) { p.Summary = v.(string) },
	},
	stringProperty("description", false,
		func(p *model.ProposalPayload) *string { return p.Description },
		func(p *model.Proposal) *string { return &p.Description }),
	stringProperty("source", false,
		func(p *model.ProposalPayload) *string { return p.Source },
		func(p *model.Proposal) *string { return &p.Source }),
	stringProperty("region_name", false,
		func(p *model.ProposalPayload) *string { return p.RegionName },
		func(p *model.Proposal) *string { return &p.RegionName }),
	{
		name:     "updated",
		required: true,
		extract: func(p *model.ProposalPayload, region config.Region) (interface{}, bool, error) {
			if p.UpdatedDate == nil {
				return nil, false, nil
			}
			t, err := region.ParseTime(*p.UpdatedDate)
			if err != nil {
				return nil, false, err
			}
			return t, true, nil
		},
		get: func(p *model.Proposal) interface{} { return p.Updated },
		set: func(p *model.Proposal, v interface{}) { p.Updated = v.(time.Time) },
	},
	stringProperty("status", true,
		func(p *model.ProposalPayload) *string { return p.Status },
		func(p *model.Proposal) *string { return &p.Status }),
	{
		name:     "complete",
		required: true,
		extract: func(p *model.ProposalPayload, _ config.Region) (interface{}, bool, error) {
			if p.Complete == nil {
				return nil, false, nil
			}
			return *p.Complete, true, nil
		},
		get: func(p *model.Proposal) interface{} { return p.Complete },
		set: func(p *model.Proposal, v interface{}) { p.Complete = v.(bool) },
	},
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// sameValue compares diff values by value. Times compare by instant.
func sameValue(a, b interface{}) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}

func malformed(field string, err error) error {
	return errors.WithStack(&model.MalformedPayload{Field: field, Reason: err.Error()})
}

// parseDuration accepts a Go duration string, "HH:MM[:SS]" or a number of
// seconds
func parseDuration(raw json.RawMessage) (*time.Duration, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] != '"' {
		secs, err := strconv.ParseFloat(string(raw), 64)
		if err != nil || secs < 0 {
			return nil, fmt.Errorf("invalid duration %s", raw)
		}
		d := time.Duration(secs * float64(time.Second))
		return &d, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return &d, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, fmt.Errorf("invalid duration %q", s)
	}
	var total time.Duration
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid duration %q", s)
		}
		total += time.Duration(n) * units[i]
	}
	return &total, nil
}
