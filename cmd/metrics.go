package cmd

import (
	"context"

	log "github.com/golang/glog"

	"github.com/jjenkins/cornerwise/internal/service"
)

// reportMetrics recalculates and logs the system metrics. Failures are
// logged, not fatal.
func reportMetrics(ctx context.Context, d *deps) {
	log.Infof("Calculating system metrics...")
	m, err := service.NewMetricsService(d.persister).CalculateAndStore(ctx)
	if err != nil {
		log.Warningf("Failed to calculate metrics: %v", err)
		return
	}
	log.Infof("=== System Metrics ===")
	log.Infof("Total proposals:      %d", m.TotalProposals)
	log.Infof("Open proposals:       %d", m.OpenProposals)
	log.Infof("Total changesets:     %d", m.TotalChangesets)
	log.Infof("Total events:         %d", m.TotalEvents)
	log.Infof("Total documents:      %d", m.TotalDocuments)
	log.Infof("Active subscriptions: %d", m.ActiveSubscriptions)
	log.Infof("Busiest region:       %s (%d proposals)", m.BusiestRegion, m.BusiestRegionProposals)
}
