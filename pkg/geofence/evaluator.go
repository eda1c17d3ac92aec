package geofence

import (
	"sort"
	"sync"
	"time"

	"github.com/jgirmay/livetrack/pkg/geo"
)

// State is a user's membership state for one zone.
type State string

const (
	Inside  State = "inside"
	Outside State = "outside"
)

// TransitionKind is the direction of a membership change.
type TransitionKind string

const (
	ZoneEnter TransitionKind = "enter"
	ZoneExit  TransitionKind = "exit"
)

// Transition is emitted when a user's membership for a zone changes.
type Transition struct {
	UserID         string         `json:"userId"`
	Zone           Zone           `json:"zone"`
	Kind           TransitionKind `json:"kind"`
	Point          geo.Point      `json:"point"`
	DistanceMeters float64        `json:"distanceMeters"`
	OccurredAt     time.Time      `json:"occurredAt"`
}

// Membership is the derived (userId, zoneId, state) triple.
type Membership struct {
	UserID string `json:"userId"`
	ZoneID string `json:"zoneId"`
	State  State  `json:"state"`
}

// Evaluator tracks per-user zone membership. Users start outside every zone.
type Evaluator struct {
	mu     sync.RWMutex
	inside map[string]map[string]bool // userID -> zoneID -> inside
	now    func() time.Time
}

// NewEvaluator creates an evaluator with no recorded membership.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		inside: make(map[string]map[string]bool),
		now:    time.Now,
	}
}

// Evaluate recomputes membership of userID at point against the supplied
// active zones and returns the transitions, in zone order. Zones absent from
// the supplied set are dropped from the user's recorded membership without
// emitting an exit.
func (e *Evaluator) Evaluate(userID string, point geo.Point, zones []Zone) []Transition {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.inside[userID]
	next := make(map[string]bool, len(zones))
	now := e.now()

	var transitions []Transition
	for _, zone := range zones {
		if !zone.IsActive {
			continue
		}
		distance := geo.DistanceMeters(point, zone.Center())
		isInside := distance <= zone.RadiusMeters
		wasInside := prev[zone.ID]

		if isInside {
			next[zone.ID] = true
		}
		if isInside == wasInside {
			continue
		}

		kind := ZoneExit
		if isInside {
			kind = ZoneEnter
		}
		transitions = append(transitions, Transition{
			UserID:         userID,
			Zone:           zone,
			Kind:           kind,
			Point:          point,
			DistanceMeters: distance,
			OccurredAt:     now,
		})
	}

	if len(next) == 0 {
		delete(e.inside, userID)
	} else {
		e.inside[userID] = next
	}
	return transitions
}

// Memberships returns the zones userID is currently inside, sorted by zone ID.
func (e *Evaluator) Memberships(userID string) []Membership {
	e.mu.RLock()
	defer e.mu.RUnlock()

	zoneIDs := make([]string, 0, len(e.inside[userID]))
	for id := range e.inside[userID] {
		zoneIDs = append(zoneIDs, id)
	}
	sort.Strings(zoneIDs)

	out := make([]Membership, 0, len(zoneIDs))
	for _, id := range zoneIDs {
		out = append(out, Membership{UserID: userID, ZoneID: id, State: Inside})
	}
	return out
}

// StateOf returns the recorded state of userID for zoneID.
func (e *Evaluator) StateOf(userID, zoneID string) State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.inside[userID][zoneID] {
		return Inside
	}
	return Outside
}

// Forget drops all recorded membership for userID.
func (e *Evaluator) Forget(userID string) {
	e.mu.Lock()
	delete(e.inside, userID)
	e.mu.Unlock()
}
