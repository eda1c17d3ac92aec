// Package metrics exposes Prometheus collectors for the live telemetry core.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "livetrack"

// Collector groups the session, store and geofence metrics.
type Collector struct {
	framesReceived    *prometheus.CounterVec
	decodeErrors      *prometheus.CounterVec
	reconnects        prometheus.Counter
	connectionState   *prometheus.GaugeVec
	zoneTransitions   *prometheus.CounterVec
	movementChanges   *prometheus.CounterVec
	notifications     prometheus.Counter
	zoneRefreshErrors prometheus.Counter
	activeZones       prometheus.Gauge
}

// New creates a Collector and registers it with reg. A nil reg skips registration.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "frames_received_total",
			Help:      "Event-stream frames decoded, by frame type.",
		}, []string{"type"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "decode_errors_total",
			Help:      "Frames dropped because they could not be decoded, by reason.",
		}, []string{"reason"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "reconnect_attempts_total",
			Help:      "Scheduled reconnection attempts that fired.",
		}),
		connectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "connection_state",
			Help:      "1 for the current connection state, 0 otherwise.",
		}, []string{"state"}),
		zoneTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "geofence",
			Name:      "transitions_total",
			Help:      "Zone enter/exit transitions, by direction and zone kind.",
		}, []string{"direction", "zone_kind"}),
		movementChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "movement",
			Name:      "state_changes_total",
			Help:      "Travel-state changes, by new movement kind.",
		}, []string{"kind"}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "notifications_total",
			Help:      "Notifications appended to the feed.",
		}),
		zoneRefreshErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "zones",
			Name:      "refresh_errors_total",
			Help:      "Failed zone registry refreshes.",
		}),
		activeZones: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "zones",
			Name:      "active",
			Help:      "Active zones in the last successful refresh.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			c.framesReceived,
			c.decodeErrors,
			c.reconnects,
			c.connectionState,
			c.zoneTransitions,
			c.movementChanges,
			c.notifications,
			c.zoneRefreshErrors,
			c.activeZones,
		)
	}
	return c
}

func (c *Collector) FrameReceived(frameType string) {
	if c == nil {
		return
	}
	c.framesReceived.WithLabelValues(frameType).Inc()
}

func (c *Collector) DecodeError(reason string) {
	if c == nil {
		return
	}
	c.decodeErrors.WithLabelValues(reason).Inc()
}

func (c *Collector) ReconnectAttempt() {
	if c == nil {
		return
	}
	c.reconnects.Inc()
}

// SetConnectionState marks current as the only active state among all.
func (c *Collector) SetConnectionState(current string, all ...string) {
	if c == nil {
		return
	}
	for _, s := range all {
		c.connectionState.WithLabelValues(s).Set(0)
	}
	c.connectionState.WithLabelValues(current).Set(1)
}

func (c *Collector) ZoneTransition(direction, zoneKind string) {
	if c == nil {
		return
	}
	c.zoneTransitions.WithLabelValues(direction, zoneKind).Inc()
}

func (c *Collector) MovementChange(kind string) {
	if c == nil {
		return
	}
	c.movementChanges.WithLabelValues(kind).Inc()
}

func (c *Collector) NotificationAppended() {
	if c == nil {
		return
	}
	c.notifications.Inc()
}

func (c *Collector) ZoneRefreshFailed() {
	if c == nil {
		return
	}
	c.zoneRefreshErrors.Inc()
}

func (c *Collector) SetActiveZones(n int) {
	if c == nil {
		return
	}
	c.activeZones.Set(float64(n))
}
