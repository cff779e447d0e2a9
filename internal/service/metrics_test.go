package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/jjenkins/cornerwise/internal/store"
)

func TestCalculateAndStore(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)
	seedWindow(t, s)

	m := NewMetricsService(s)
	m.now = func() time.Time { return t0 }

	latest, err := m.GetLatestMetrics(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(latest), 0)

	metrics, err := m.CalculateAndStore(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, metrics.TotalProposals, 2)
	assert.Equal(t, metrics.OpenProposals, 2)
	assert.Equal(t, metrics.TotalDocuments, 1)

	latest, err = m.GetLatestMetrics(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, latest["total_proposals"], "2")
	assert.Equal(t, latest["busiest_region"], "Somerville, MA")
	assert.Equal(t, latest["total_changesets"], "1")
}
