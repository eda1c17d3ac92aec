// Package zones keeps a periodically refreshed, read-only view of the
// geofence zones and movement anchors owned by the portal.
package zones

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jgirmay/livetrack/pkg/geofence"
	"github.com/jgirmay/livetrack/pkg/metrics"
	"github.com/jgirmay/livetrack/pkg/movement"
)

const DefaultRefreshInterval = 5 * time.Second

// Registry caches the last successfully loaded zones. A failed zone load
// keeps the previous list.
type Registry struct {
	source   Source
	anchors  AnchorSource
	target   *movement.StaticAnchors
	interval time.Duration
	logger   *zap.Logger
	metrics  *metrics.Collector

	mu          sync.RWMutex
	zones       []geofence.Zone
	lastRefresh time.Time
	lastErr     error
}

type Option func(*Registry)

func WithInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithAnchors also refreshes target from src on every cycle.
func WithAnchors(src AnchorSource, target *movement.StaticAnchors) Option {
	return func(r *Registry) {
		r.anchors = src
		r.target = target
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l.Named("zones")
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(r *Registry) { r.metrics = m }
}

func NewRegistry(source Source, opts ...Option) *Registry {
	r := &Registry{
		source:   source,
		interval: DefaultRefreshInterval,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Active returns the zones with IsActive set.
func (r *Registry) Active() []geofence.Zone {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return geofence.FilterActive(r.zones)
}

// All returns every cached zone.
func (r *Registry) All() []geofence.Zone {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]geofence.Zone(nil), r.zones...)
}

// LastRefresh reports when zones were last loaded and the last error.
func (r *Registry) LastRefresh() (time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRefresh, r.lastErr
}

// Refresh reloads zones and, if configured, anchors. Fresh zones are kept
// even when the anchor load fails; the anchor error is still returned.
func (r *Registry) Refresh(ctx context.Context) error {
	zones, err := r.source.Zones(ctx)
	if err != nil {
		r.fail(err)
		return err
	}

	r.mu.Lock()
	r.zones = zones
	r.lastRefresh = time.Now()
	r.lastErr = nil
	active := len(geofence.FilterActive(zones))
	r.mu.Unlock()

	r.metrics.SetActiveZones(active)
	r.logger.Debug("zones refreshed", zap.Int("total", len(zones)), zap.Int("active", active))

	if r.anchors != nil && r.target != nil {
		offices, customers, err := r.anchors.Anchors(ctx)
		if err != nil {
			err = fmt.Errorf("failed to refresh anchors: %w", err)
			r.fail(err)
			return err
		}
		r.target.Replace(offices, customers)
	}
	return nil
}

func (r *Registry) fail(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
	r.metrics.ZoneRefreshFailed()
	r.logger.Warn("zone refresh failed", zap.Error(err))
}

// Run refreshes immediately and then every interval until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		r.logger.Debug("initial zone refresh failed", zap.Error(err))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.Refresh(ctx)
		}
	}
}

