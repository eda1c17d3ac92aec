package movement

import (
	"math"
	"sync"
	"time"

	"github.com/jgirmay/livetrack/pkg/geo"
)

// Observation is a raw location sample to classify.
type Observation struct {
	UserID       string
	TaskID       string
	Point        geo.Point
	SpeedKmh     *float64
	BatteryLevel *int
	Timestamp    time.Time
}

// Result is the classified sample plus the kind previously assigned to the user.
type Result struct {
	Sample   Sample
	Previous Kind
	// Changed is set when the user had a prior classification that differs.
	Changed bool
}

type track struct {
	last        geo.Point
	lastAt      time.Time
	officeDist  *float64
	stablePoint geo.Point
	stableSince time.Time
	kind        Kind
}

// Classifier assigns movement kinds using per-user context from earlier samples.
type Classifier struct {
	cfg     Config
	anchors Anchors

	mu     sync.Mutex
	tracks map[string]*track
}

// NewClassifier creates a classifier. anchors may be nil, in which case
// no distances are measured.
func NewClassifier(cfg Config, anchors Anchors) *Classifier {
	return &Classifier{
		cfg:     cfg,
		anchors: anchors,
		tracks:  make(map[string]*track),
	}
}

// Classify labels obs. Rules are evaluated in order, first match wins:
// near the customer site, idle at a stable point long enough, getting
// closer to the office, otherwise travelling to the customer. A sample with
// no anchor distance at all is labelled Other.
func (c *Classifier) Classify(obs Observation) Result {
	sample := Sample{
		UserID:       obs.UserID,
		TaskID:       obs.TaskID,
		Point:        obs.Point,
		SpeedKmh:     obs.SpeedKmh,
		BatteryLevel: obs.BatteryLevel,
		Timestamp:    obs.Timestamp,
	}
	sample.DistanceFromOffice = c.nearestOffice(obs.Point)
	if c.anchors != nil {
		if site, ok := c.anchors.CustomerSite(obs.TaskID); ok {
			d := geo.DistanceMeters(obs.Point, site)
			sample.DistanceFromCustomer = &d
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	t, seen := c.tracks[obs.UserID]
	if !seen {
		t = &track{stablePoint: obs.Point, stableSince: obs.Timestamp}
		c.tracks[obs.UserID] = t
	}

	speed := obs.SpeedKmh
	if speed == nil && seen && obs.Timestamp.After(t.lastAt) {
		derived := geo.SpeedKmh(t.last, obs.Point, obs.Timestamp.Sub(t.lastAt).Seconds())
		speed = &derived
	}

	if seen {
		if c.cfg.StableRadiusMeters <= 0 || geo.DistanceMeters(t.stablePoint, obs.Point) > c.cfg.StableRadiusMeters {
			t.stablePoint = obs.Point
			t.stableSince = obs.Timestamp
		}
	}

	sample.Kind = c.decide(sample, speed, t, seen)

	result := Result{Sample: sample, Previous: t.kind}
	result.Changed = seen && t.kind != "" && t.kind != sample.Kind

	// A late sample is classified but does not move the baseline.
	if !seen || !obs.Timestamp.Before(t.lastAt) {
		t.last = obs.Point
		t.lastAt = obs.Timestamp
		t.officeDist = sample.DistanceFromOffice
	}
	t.kind = sample.Kind
	return result
}

func (c *Classifier) decide(s Sample, speed *float64, t *track, seen bool) Kind {
	if s.DistanceFromCustomer != nil && *s.DistanceFromCustomer < c.cfg.CustomerProximityMeters {
		return AtCustomerLocation
	}
	if c.cfg.BreakDetectionEnabled() && speed != nil && *speed < c.cfg.IdleSpeedKmh &&
		s.Timestamp.Sub(t.stableSince) >= c.cfg.BreakMinDuration {
		return Break
	}
	if seen && s.DistanceFromOffice != nil && t.officeDist != nil && *s.DistanceFromOffice < *t.officeDist {
		return ReturningToOffice
	}
	if s.DistanceFromOffice == nil && s.DistanceFromCustomer == nil {
		return Other
	}
	return TravelingToCustomer
}

func (c *Classifier) nearestOffice(p geo.Point) *float64 {
	if c.anchors == nil {
		return nil
	}
	offices := c.anchors.Offices()
	if len(offices) == 0 {
		return nil
	}
	best := math.Inf(1)
	for _, office := range offices {
		best = math.Min(best, geo.DistanceMeters(p, office))
	}
	return &best
}

// Current returns the last kind assigned to userID.
func (c *Classifier) Current(userID string) (Kind, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tracks[userID]
	if !ok {
		return "", false
	}
	return t.kind, true
}

// Reset drops the per-user context for userID.
func (c *Classifier) Reset(userID string) {
	c.mu.Lock()
	delete(c.tracks, userID)
	c.mu.Unlock()
}
