package eventstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store owns the four bounded collections. All methods are safe for
// concurrent use; snapshots are copies.
type Store struct {
	mu sync.RWMutex

	presence        map[PresenceKey]PresenceEntry
	activity        *ring[ActivityEvent]
	liveLocations   map[string]LocationSample
	locationHistory []LocationSample // newest first, one per user
	notifications   *ring[Notification]

	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for notification timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used to report invariant violations.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		presence:        make(map[PresenceKey]PresenceEntry),
		activity:        newRing[ActivityEvent](ActivityCapacity),
		liveLocations:   make(map[string]LocationSample),
		locationHistory: make([]LocationSample, 0, LocationHistoryCapacity),
		notifications:   newRing[Notification](NotificationCapacity),
		now:             time.Now,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpsertPresence inserts entry if its key is absent. It reports whether
// the entry was inserted; an existing entry is left untouched.
func (s *Store) UpsertPresence(entry PresenceEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entry.Key()
	if _, ok := s.presence[key]; ok {
		return false
	}
	if entry.LastActivity.IsZero() {
		entry.LastActivity = s.now()
	}
	s.presence[key] = entry
	return true
}

// RemovePresence deletes the entry for key and reports whether one existed.
func (s *Store) RemovePresence(key PresenceKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.presence[key]; !ok {
		return false
	}
	delete(s.presence, key)
	return true
}

// PushActivity prepends event, evicting the oldest beyond ActivityCapacity.
func (s *Store) PushActivity(event ActivityEvent) ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if len(event.Changes) > 0 {
		event.Changes = append(json.RawMessage(nil), event.Changes...)
	}
	s.activity.push(event)
	s.checkLocked()
	return event
}

// UpsertLocation replaces the live sample for sample.UserID and moves the
// user to the front of the location history.
func (s *Store) UpsertLocation(sample LocationSample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.liveLocations[sample.UserID] = sample

	history := make([]LocationSample, 0, LocationHistoryCapacity)
	history = append(history, sample)
	for _, existing := range s.locationHistory {
		if existing.UserID == sample.UserID {
			continue
		}
		if len(history) == LocationHistoryCapacity {
			break
		}
		history = append(history, existing)
	}
	s.locationHistory = history
	s.checkLocked()
}

// PushNotification prepends message, evicting beyond NotificationCapacity.
func (s *Store) PushNotification(message string) Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := Notification{ID: uuid.New(), Message: message, OccurredAt: s.now()}
	s.notifications.push(n)
	s.checkLocked()
	return n
}

// Presence returns the online entries ordered by LastActivity, then key.
func (s *Store) Presence() []PresenceEntry {
	s.mu.RLock()
	out := make([]PresenceEntry, 0, len(s.presence))
	for _, p := range s.presence {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].LastActivity.Before(out[j].LastActivity)
		}
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].ClientKind < out[j].ClientKind
	})
	return out
}

// Activity returns the activity feed, newest first.
func (s *Store) Activity() []ActivityEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activity.newestFirst()
}

// LiveLocation returns the latest sample for userID.
func (s *Store) LiveLocation(userID string) (LocationSample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sample, ok := s.liveLocations[userID]
	return sample, ok
}

// LiveLocations returns one sample per user, ordered by user ID.
func (s *Store) LiveLocations() []LocationSample {
	s.mu.RLock()
	out := make([]LocationSample, 0, len(s.liveLocations))
	for _, l := range s.liveLocations {
		out = append(out, l)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// LocationHistory returns the recent-locations view, newest first.
func (s *Store) LocationHistory() []LocationSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]LocationSample(nil), s.locationHistory...)
}

// Notifications returns the notification feed, newest first.
func (s *Store) Notifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notifications.newestFirst()
}

// Counts summarises collection sizes.
type Counts struct {
	Presence        int `json:"presence"`
	Activity        int `json:"activity"`
	LiveLocations   int `json:"liveLocations"`
	LocationHistory int `json:"locationHistory"`
	Notifications   int `json:"notifications"`
}

// Counts returns the current collection sizes.
func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Presence:        len(s.presence),
		Activity:        s.activity.len(),
		LiveLocations:   len(s.liveLocations),
		LocationHistory: len(s.locationHistory),
		Notifications:   s.notifications.len(),
	}
}

// checkLocked verifies the capacity and uniqueness invariants. Violations
// panic in debug builds; otherwise they are logged and repaired.
func (s *Store) checkLocked() {
	var violation string
	switch {
	case s.activity.len() > ActivityCapacity:
		violation = fmt.Sprintf("activity feed holds %d entries", s.activity.len())
	case s.notifications.len() > NotificationCapacity:
		violation = fmt.Sprintf("notification feed holds %d entries", s.notifications.len())
	case len(s.locationHistory) > LocationHistoryCapacity:
		violation = fmt.Sprintf("location history holds %d entries", len(s.locationHistory))
	default:
		seen := make(map[string]struct{}, len(s.locationHistory))
		for _, l := range s.locationHistory {
			if _, dup := seen[l.UserID]; dup {
				violation = "location history holds duplicate user " + l.UserID
				break
			}
			seen[l.UserID] = struct{}{}
		}
	}
	if violation == "" {
		return
	}
	if strictInvariants {
		panic("eventstore: invariant violated: " + violation)
	}
	s.logger.Error("eventstore invariant violated", zap.String("violation", violation))
	s.repairLocked()
}

func (s *Store) repairLocked() {
	s.activity.clamp()
	s.notifications.clamp()

	history := make([]LocationSample, 0, LocationHistoryCapacity)
	seen := make(map[string]struct{}, len(s.locationHistory))
	for _, l := range s.locationHistory {
		if _, dup := seen[l.UserID]; dup {
			continue
		}
		if len(history) == LocationHistoryCapacity {
			break
		}
		seen[l.UserID] = struct{}{}
		history = append(history, l)
	}
	s.locationHistory = history
}
