package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/jjenkins/cornerwise/internal/config"
	"github.com/jjenkins/cornerwise/internal/model"
	"github.com/jjenkins/cornerwise/internal/store"
)

// ImportStats tracks import statistics
type ImportStats struct {
	Importer  string
	Total     int
	Created   int
	Changed   int
	Unchanged int
	Failed    int
}

// Importer pulls case batches from the configured feeds and records them
type Importer struct {
	client   *FeedClient
	recorder *Recorder
	runs     store.Runs
	regions  *config.Regions
	now      func() time.Time
}

// NewImporter creates a new Importer
func NewImporter(client *FeedClient, recorder *Recorder, runs store.Runs, regions *config.Regions) *Importer {
	return &Importer{
		client:   client,
		recorder: recorder,
		runs:     runs,
		regions:  regions,
		now:      time.Now,
	}
}

// Lookup finds a configured importer by name, ignoring case
func (i *Importer) Lookup(name string) (config.Importer, bool) {
	for _, imp := range i.regions.Importers() {
		if strings.EqualFold(imp.Name, name) {
			return imp, true
		}
	}
	return config.Importer{}, false
}

// Due reports whether imp should run now. It also returns the last run,
// which is nil for an importer that has never run.
func (i *Importer) Due(ctx context.Context, imp config.Importer) (bool, *time.Time, error) {
	last, err := i.runs.LastRun(ctx, imp.Name)
	if err != nil {
		return false, nil, err
	}
	if last == nil {
		return true, nil, nil
	}
	next := last.AddDate(0, 0, imp.RunDays())
	return !i.now().Before(next), last, nil
}

// RunAll runs every importer that is due, or all of them when force is
// set. A failing importer does not stop the others.
func (i *Importer) RunAll(ctx context.Context, force bool) ([]*ImportStats, error) {
	var all []*ImportStats
	for _, imp := range i.regions.Importers() {
		select {
		case <-ctx.Done():
			return all, ctx.Err()
		default:
		}

		due, last, err := i.Due(ctx, imp)
		if err != nil {
			log.Errorf("Failed to check importer %s: %v", imp.Name, err)
			continue
		}
		if !due && !force {
			log.Infof("Importer %s is not due (last run %s)", imp.Name, last.Format(time.RFC3339))
			continue
		}

		stats, err := i.Run(ctx, imp, last)
		if err != nil {
			log.Errorf("Importer %s failed: %v", imp.Name, err)
			continue
		}
		all = append(all, stats)
	}
	return all, nil
}

// Run fetches the cases imp reports as updated since when and records each
// in its own transaction, then saves the run time
func (i *Importer) Run(ctx context.Context, imp config.Importer, when *time.Time) (*ImportStats, error) {
	started := i.now()
	log.Infof("Fetching cases from %s...", imp.Name)
	resp, err := i.client.FetchCases(ctx, imp.URL, when)
	if err != nil {
		return nil, errors.Wrapf(err, "importer %s", imp.Name)
	}
	log.Infof("Found %d cases from %s", len(resp.Cases), imp.Name)

	stats, err := i.apply(ctx, imp.Name, i.regions.ImporterRegion(imp), resp.Cases)
	if err != nil {
		return stats, err
	}
	if err := i.runs.SaveRun(ctx, imp.Name, started); err != nil {
		return stats, errors.Wrapf(err, "importer %s", imp.Name)
	}
	return stats, nil
}

// ImportFile records the cases in a local JSON document shaped like an
// importer response
func (i *Importer) ImportFile(ctx context.Context, path string, region config.Region) (*ImportStats, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var resp model.ImportResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, errors.WithStack(&model.MalformedPayload{Reason: err.Error()})
	}
	return i.apply(ctx, path, region, resp.Cases)
}

func (i *Importer) apply(ctx context.Context, source string, region config.Region, cases []json.RawMessage) (*ImportStats, error) {
	stats := &ImportStats{Importer: source, Total: len(cases)}

	for idx, raw := range cases {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		progress := fmt.Sprintf("[%d/%d]", idx+1, stats.Total)

		payload, err := model.DecodeProposalPayload(raw)
		if err != nil {
			log.Errorf("%s Skipping malformed case: %v", progress, err)
			stats.Failed++
			continue
		}

		update, err := i.recorder.Apply(ctx, payload, region)
		if err != nil {
			log.Errorf("%s Failed to record case %s: %v", progress, payload.CaseNumber, err)
			stats.Failed++
			continue
		}

		switch {
		case update.Created:
			log.V(1).Infof("%s Case %s created", progress, payload.CaseNumber)
			stats.Created++
		case update.Changed:
			log.V(1).Infof("%s Case %s changed", progress, payload.CaseNumber)
			stats.Changed++
		default:
			log.V(2).Infof("%s Case %s unchanged", progress, payload.CaseNumber)
			stats.Unchanged++
		}
	}

	return stats, nil
}

// PrintSummary logs the import statistics
func PrintSummary(stats *ImportStats) {
	log.Infof("=== Import Summary: %s ===", stats.Importer)
	log.Infof("Total cases:     %d", stats.Total)
	log.Infof("Created:         %d", stats.Created)
	log.Infof("Changed:         %d", stats.Changed)
	log.Infof("Unchanged:       %d", stats.Unchanged)
	log.Infof("Failed:          %d", stats.Failed)

	if stats.Total > 0 {
		successRate := float64(stats.Total-stats.Failed) / float64(stats.Total) * 100
		log.Infof("Success rate:    %.1f%%", successRate)
	}
}
