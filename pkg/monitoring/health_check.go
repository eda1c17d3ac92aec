package monitoring

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jgirmay/livetrack/pkg/session"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Name       string         `json:"name"`
	Status     HealthStatus   `json:"status"`
	Message    string         `json:"message"`
	LastCheck  time.Time      `json:"last_check"`
	ResponseMs int64          `json:"response_ms"`
	Details    map[string]any `json:"details,omitempty"`
}

// Report is the overall health of the process.
type Report struct {
	Status     HealthStatus      `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components []ComponentHealth `json:"components"`
	Uptime     int64             `json:"uptime_seconds"`
	Version    string            `json:"version"`
}

// SessionStatus is implemented by *session.Manager.
type SessionStatus interface {
	Status() session.Status
}

// ZoneStatus is implemented by *zones.Registry.
type ZoneStatus interface {
	LastRefresh() (time.Time, error)
}

// HealthChecker aggregates the session and its optional backing services.
type HealthChecker struct {
	session SessionStatus
	zones   ZoneStatus
	db      *sql.DB
	redis   redis.UniversalClient
	version string

	mu            sync.Mutex
	startTime     time.Time
	lastCheckTime time.Time
	cached        *Report
	cacheDuration time.Duration
}

type Option func(*HealthChecker)

func WithZones(z ZoneStatus) Option {
	return func(hc *HealthChecker) { hc.zones = z }
}

func WithDatabase(db *sql.DB) Option {
	return func(hc *HealthChecker) { hc.db = db }
}

func WithRedis(c redis.UniversalClient) Option {
	return func(hc *HealthChecker) { hc.redis = c }
}

// WithCacheDuration sets how long a report is reused. Zero disables caching.
func WithCacheDuration(d time.Duration) Option {
	return func(hc *HealthChecker) { hc.cacheDuration = d }
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(s SessionStatus, version string, opts ...Option) *HealthChecker {
	hc := &HealthChecker{
		session:       s,
		version:       version,
		startTime:     time.Now(),
		cacheDuration: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(hc)
	}
	return hc
}

// Check performs a comprehensive health check
func (hc *HealthChecker) Check(ctx context.Context) *Report {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	if hc.cached != nil && hc.cacheDuration > 0 && time.Since(hc.lastCheckTime) < hc.cacheDuration {
		return hc.cached
	}

	report := &Report{
		Timestamp: time.Now(),
		Uptime:    int64(time.Since(hc.startTime).Seconds()),
		Version:   hc.version,
	}

	report.Components = append(report.Components, hc.checkSession())
	if hc.zones != nil {
		report.Components = append(report.Components, hc.checkZones())
	}
	if hc.db != nil {
		report.Components = append(report.Components, hc.checkDatabase(ctx))
	}
	if hc.redis != nil {
		report.Components = append(report.Components, hc.checkRedis(ctx))
	}

	report.Status = HealthStatusHealthy
	for _, comp := range report.Components {
		if comp.Status == HealthStatusUnhealthy {
			report.Status = HealthStatusUnhealthy
		} else if comp.Status == HealthStatusDegraded && report.Status != HealthStatusUnhealthy {
			report.Status = HealthStatusDegraded
		}
	}

	hc.cached = report
	hc.lastCheckTime = time.Now()
	return report
}

func (hc *HealthChecker) checkSession() ComponentHealth {
	st := hc.session.Status()
	health := ComponentHealth{
		Name:      "event_stream",
		LastCheck: time.Now(),
		Details: map[string]any{
			"state":      st.State,
			"reconnects": st.Reconnects,
		},
	}

	switch {
	case st.Stopped:
		health.Status = HealthStatusUnhealthy
		health.Message = "session stopped"
	case st.State == session.StateConnected:
		health.Status = HealthStatusHealthy
		health.Message = st.Label
	default:
		health.Status = HealthStatusDegraded
		health.Message = st.Label
		if st.LastError != "" {
			health.Message = fmt.Sprintf("%s: %s", st.Label, st.LastError)
		}
	}
	return health
}

func (hc *HealthChecker) checkZones() ComponentHealth {
	last, err := hc.zones.LastRefresh()
	health := ComponentHealth{
		Name:      "zones",
		Status:    HealthStatusHealthy,
		Message:   "zones refreshed",
		LastCheck: time.Now(),
	}
	switch {
	case err != nil:
		health.Status = HealthStatusDegraded
		health.Message = fmt.Sprintf("refresh failing: %v", err)
	case last.IsZero():
		health.Status = HealthStatusDegraded
		health.Message = "zones not loaded yet"
	}
	if !last.IsZero() {
		health.Details = map[string]any{"last_refresh": last}
	}
	return health
}

// checkDatabase performs a health check on the database
func (hc *HealthChecker) checkDatabase(ctx context.Context) ComponentHealth {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health := ComponentHealth{
		Name:      "database",
		Status:    HealthStatusHealthy,
		LastCheck: time.Now(),
	}

	if err := hc.db.PingContext(ctx); err != nil {
		health.Status = HealthStatusUnhealthy
		health.Message = fmt.Sprintf("ping failed: %v", err)
		health.ResponseMs = time.Since(start).Milliseconds()
		return health
	}

	stats := hc.db.Stats()
	health.Details = map[string]any{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
	}

	health.Message = "database healthy"
	health.ResponseMs = time.Since(start).Milliseconds()
	if health.ResponseMs > 100 {
		health.Status = HealthStatusDegraded
		health.Message = fmt.Sprintf("database response slow: %dms", health.ResponseMs)
	}
	return health
}

func (hc *HealthChecker) checkRedis(ctx context.Context) ComponentHealth {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	health := ComponentHealth{
		Name:      "redis",
		Status:    HealthStatusHealthy,
		Message:   "redis healthy",
		LastCheck: time.Now(),
	}
	if err := hc.redis.Ping(ctx).Err(); err != nil {
		// notification fan-out is best effort
		health.Status = HealthStatusDegraded
		health.Message = fmt.Sprintf("ping failed: %v", err)
	}
	health.ResponseMs = time.Since(start).Milliseconds()
	return health
}

// Ready reports whether the event stream is connected.
func (hc *HealthChecker) Ready() bool {
	st := hc.session.Status()
	return !st.Stopped && st.State == session.StateConnected
}

// Live reports whether the process should keep running. A stopped session
// never recovers.
func (hc *HealthChecker) Live() bool {
	return !hc.session.Status().Stopped
}
