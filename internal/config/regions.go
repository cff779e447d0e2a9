package config

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultTimezone is used for regions and importers that do not name one
const DefaultTimezone = "US/Eastern"

// Layouts tried, in order, for datetimes that carry no offset
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006",
}

// Region is a named municipality with the timezone its importers report in
type Region struct {
	Name     string
	Timezone string
	loc      *time.Location
}

// Location returns the region's timezone
func (r Region) Location() *time.Location {
	if r.loc == nil {
		return time.UTC
	}
	return r.loc
}

// Localize interprets a wall-clock time in the region's timezone. Times
// that already carry a zone are converted instead.
func (r Region) Localize(t time.Time, naive bool) time.Time {
	if naive {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), r.Location())
	}
	return t.In(r.Location())
}

// ParseTime parses an importer datetime. Values with an offset keep it;
// naive values are localized to the region.
func (r Region) ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return r.Localize(t, false), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, r.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", s)
}

// Now returns the current time in the region
func (r Region) Now() time.Time {
	return time.Now().In(r.Location())
}

// Importer is a feed Cornerwise polls for proposal updates
type Importer struct {
	Name         string        `yaml:"name"`
	URL          string        `yaml:"url"`
	RegionName   string        `yaml:"region"`
	Timezone     string        `yaml:"timezone"`
	RunFrequency time.Duration `yaml:"run_frequency"`
}

// RunDays returns the run frequency rounded up to whole days, at least one
func (i Importer) RunDays() int {
	days := int(math.Ceil(i.RunFrequency.Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// Regions is an immutable table of regions keyed by case-folded name
type Regions struct {
	byName    map[string]Region
	names     []string
	importers []Importer
}

type regionFile struct {
	Regions []struct {
		Name     string `yaml:"name"`
		Timezone string `yaml:"timezone"`
	} `yaml:"regions"`
	Importers []Importer `yaml:"importers"`
}

// DefaultRegions returns the built in table
func DefaultRegions() *Regions {
	r, err := NewRegions(map[string]string{
		"Somerville, MA": DefaultTimezone,
		"Cambridge, MA":  DefaultTimezone,
	}, nil)
	if err != nil {
		panic(err)
	}
	return r
}

// NewRegions builds a table from name → timezone pairs
func NewRegions(zones map[string]string, importers []Importer) (*Regions, error) {
	r := &Regions{byName: make(map[string]Region, len(zones))}
	for name, tz := range zones {
		if tz == "" {
			tz = DefaultTimezone
		}
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, errors.Wrapf(err, "region %s", name)
		}
		key := strings.ToLower(name)
		if _, ok := r.byName[key]; ok {
			return nil, errors.Errorf("duplicate region %s", name)
		}
		r.byName[key] = Region{Name: name, Timezone: tz, loc: loc}
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)

	for _, imp := range importers {
		if imp.Name == "" || imp.URL == "" {
			return nil, errors.Errorf("importer %q needs a name and url", imp.Name)
		}
		if imp.RegionName != "" {
			if _, ok := r.Lookup(imp.RegionName); !ok {
				return nil, errors.Errorf("importer %s names unknown region %s", imp.Name, imp.RegionName)
			}
		}
		if imp.Timezone != "" {
			if _, err := time.LoadLocation(imp.Timezone); err != nil {
				return nil, errors.Wrapf(err, "importer %s", imp.Name)
			}
		}
		r.importers = append(r.importers, imp)
	}
	return r, nil
}

// LoadRegions reads a YAML file of regions and importers
func LoadRegions(path string) (*Regions, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRegions(b)
}

// ParseRegions parses the YAML form of the region table
func ParseRegions(b []byte) (*Regions, error) {
	var f regionFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrap(err, "failed to parse regions")
	}
	if len(f.Regions) == 0 {
		return nil, errors.New("regions file lists no regions")
	}
	zones := make(map[string]string, len(f.Regions))
	for _, reg := range f.Regions {
		if _, ok := zones[reg.Name]; ok {
			return nil, errors.Errorf("duplicate region %s", reg.Name)
		}
		zones[reg.Name] = reg.Timezone
	}
	return NewRegions(zones, f.Importers)
}

// Lookup finds a region by name, ignoring case
func (r *Regions) Lookup(name string) (Region, bool) {
	reg, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return reg, ok
}

// Get returns the named region, or a UTC placeholder for unknown names
func (r *Regions) Get(name string) Region {
	if reg, ok := r.Lookup(name); ok {
		return reg
	}
	return Region{Name: name, Timezone: "UTC", loc: time.UTC}
}

// Names returns the region names in sorted order
func (r *Regions) Names() []string {
	return append([]string(nil), r.names...)
}

// Importers returns the configured importers
func (r *Regions) Importers() []Importer {
	return append([]Importer(nil), r.importers...)
}

// ImporterRegion returns the region an importer's payloads are localized
// in. The importer's own timezone wins over its region's.
func (r *Regions) ImporterRegion(imp Importer) Region {
	reg := r.Get(imp.RegionName)
	if imp.Timezone != "" {
		if loc, err := time.LoadLocation(imp.Timezone); err == nil {
			reg.Timezone = imp.Timezone
			reg.loc = loc
		}
	}
	return reg
}
