package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jjenkins/cornerwise/internal/model"
	"github.com/jjenkins/cornerwise/internal/store"
)

var storedRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "cornerwise_stored_records",
	Help: "Records in the store at the last metrics run, by kind",
}, []string{"kind"})

// MetricsService calculates and stores system-wide metrics
type MetricsService struct {
	store store.Metrics
	now   func() time.Time
}

// NewMetricsService creates a new MetricsService
func NewMetricsService(s store.Metrics) *MetricsService {
	return &MetricsService{store: s, now: time.Now}
}

// CalculateAndStore calculates system metrics, stores them and exports
// them as gauges
func (m *MetricsService) CalculateAndStore(ctx context.Context) (*model.SystemMetrics, error) {
	metrics, err := m.store.SystemMetrics(ctx)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{
		"total_proposals":      metrics.TotalProposals,
		"open_proposals":       metrics.OpenProposals,
		"total_changesets":     metrics.TotalChangesets,
		"total_events":         metrics.TotalEvents,
		"total_documents":      metrics.TotalDocuments,
		"total_images":         metrics.TotalImages,
		"active_subscriptions": metrics.ActiveSubscriptions,
	}

	at := m.now()
	for name, v := range counts {
		storedRecords.WithLabelValues(name).Set(float64(v))
		if err := m.store.SaveMetric(ctx, name, fmt.Sprintf("%d", v), at); err != nil {
			return nil, err
		}
	}
	if err := m.store.SaveMetric(ctx, "busiest_region", metrics.BusiestRegion, at); err != nil {
		return nil, err
	}

	return metrics, nil
}

// GetLatestMetrics retrieves the most recent system metrics
func (m *MetricsService) GetLatestMetrics(ctx context.Context) (map[string]string, error) {
	return m.store.LatestMetrics(ctx)
}
