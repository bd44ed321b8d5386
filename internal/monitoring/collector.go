// Package monitoring reports aggregate health of the scored lead base.
package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/carebridge/leadtrust/internal/model"
	"github.com/carebridge/leadtrust/internal/store"
)

// DefaultWindow is the lookback for ledger activity metrics.
const DefaultWindow = 24 * time.Hour

// Collector gathers trust metrics from the store.
type Collector struct {
	store  store.Store
	window time.Duration
}

// NewCollector creates a Collector. A non-positive window falls back to
// DefaultWindow.
func NewCollector(st store.Store, window time.Duration) *Collector {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Collector{store: st, window: window}
}

// Snapshot collects current metrics and stamps them with the window and
// collection time.
func (c *Collector) Snapshot(ctx context.Context) (*model.TrustMetrics, error) {
	now := time.Now().UTC()
	m, err := c.store.CollectMetrics(ctx, now.Add(-c.window))
	if err != nil {
		return nil, err
	}
	m.WindowHours = int(c.window.Hours())
	m.CollectedAt = now

	if m.TotalLeads > 0 {
		hiddenRate := float64(m.RiskyHiddenLeads+m.BlacklistedLeads) / float64(m.TotalLeads)
		if hiddenRate > 0.5 {
			zap.L().Warn("more than half of the lead base is hidden or blacklisted",
				zap.Int("total", m.TotalLeads),
				zap.Int("risky_hidden", m.RiskyHiddenLeads),
				zap.Int("blacklisted", m.BlacklistedLeads),
			)
		}
	}
	return m, nil
}
