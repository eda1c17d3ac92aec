package eventstore

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func TestPresenceIdempotentUpsert(t *testing.T) {
	s := New(WithClock(fixedClock()))
	entry := PresenceEntry{UserID: "eng1", Role: "field_engineer", ClientKind: "mobile"}

	assert.True(t, s.UpsertPresence(entry))
	assert.False(t, s.UpsertPresence(entry))

	presence := s.Presence()
	require.Len(t, presence, 1)
	assert.Equal(t, "eng1", presence[0].UserID)
	assert.False(t, presence[0].LastActivity.IsZero())
}

func TestPresenceKeyIncludesClientKind(t *testing.T) {
	s := New(WithClock(fixedClock()))
	s.UpsertPresence(PresenceEntry{UserID: "eng1", Role: "field_engineer", ClientKind: "mobile"})
	s.UpsertPresence(PresenceEntry{UserID: "eng1", Role: "field_engineer", ClientKind: "web"})
	assert.Len(t, s.Presence(), 2)

	assert.True(t, s.RemovePresence(PresenceKey{UserID: "eng1", ClientKind: "mobile"}))
	assert.False(t, s.RemovePresence(PresenceKey{UserID: "eng1", ClientKind: "mobile"}))

	presence := s.Presence()
	require.Len(t, presence, 1)
	assert.Equal(t, "web", presence[0].ClientKind)
}

func TestActivityFeedBounded(t *testing.T) {
	for _, n := range []int{0, 1, 19, 20, 21, 57} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			s := New(WithClock(fixedClock()))
			for i := 0; i < n; i++ {
				s.PushActivity(ActivityEvent{Kind: ActivityCreated, SubjectID: fmt.Sprint(i)})
			}
			feed := s.Activity()
			assert.Len(t, feed, min(n, ActivityCapacity))
			if n > 0 {
				assert.Equal(t, fmt.Sprint(n-1), feed[0].SubjectID)
				assert.Equal(t, fmt.Sprint(n-len(feed)), feed[len(feed)-1].SubjectID)
			}
			for i := 1; i < len(feed); i++ {
				assert.True(t, feed[i-1].OccurredAt.After(feed[i].OccurredAt))
			}
		})
	}
}

func TestPushActivityAssignsIDAndCopiesChanges(t *testing.T) {
	s := New()
	changes := []byte(`{"status":"done"}`)
	ev := s.PushActivity(ActivityEvent{Kind: ActivityUpdated, SubjectID: "42", Changes: changes})
	changes[2] = 'X'

	assert.NotEqual(t, uuid.Nil, ev.ID)
	assert.JSONEq(t, `{"status":"done"}`, string(s.Activity()[0].Changes))
}

func TestNotificationFeedBounded(t *testing.T) {
	s := New(WithClock(fixedClock()))
	for i := 0; i < 25; i++ {
		s.PushNotification(fmt.Sprintf("msg-%d", i))
	}
	feed := s.Notifications()
	require.Len(t, feed, NotificationCapacity)
	assert.Equal(t, "msg-24", feed[0].Message)
	assert.Equal(t, "msg-15", feed[9].Message)
}

func TestLocationDedup(t *testing.T) {
	s := New()
	first := LocationSample{UserID: "eng1", Latitude: 28.1, Longitude: 77.1, CapturedAt: time.Unix(100, 0)}
	second := LocationSample{UserID: "eng1", Latitude: 28.2, Longitude: 77.2, CapturedAt: time.Unix(200, 0)}

	s.UpsertLocation(first)
	s.UpsertLocation(second)

	live := s.LiveLocations()
	require.Len(t, live, 1)
	assert.Equal(t, 28.2, live[0].Latitude)

	history := s.LocationHistory()
	require.Len(t, history, 1)
	assert.Equal(t, 77.2, history[0].Longitude)
}

func TestLocationHistoryCapacityAndOrder(t *testing.T) {
	s := New()
	for i := 0; i < 15; i++ {
		s.UpsertLocation(LocationSample{UserID: fmt.Sprintf("eng%d", i), Latitude: float64(i)})
	}
	history := s.LocationHistory()
	require.Len(t, history, LocationHistoryCapacity)
	assert.Equal(t, "eng14", history[0].UserID)
	assert.Equal(t, "eng5", history[9].UserID)

	// Live view keeps every user; the two views are distinct.
	assert.Len(t, s.LiveLocations(), 15)

	// An older user reporting again moves to the front.
	s.UpsertLocation(LocationSample{UserID: "eng7", Latitude: 70})
	history = s.LocationHistory()
	require.Len(t, history, LocationHistoryCapacity)
	assert.Equal(t, "eng7", history[0].UserID)
	assert.Equal(t, "eng14", history[1].UserID)
	assert.Equal(t, "eng5", history[9].UserID)

	// A user that fell out of history re-enters at the front, evicting the oldest.
	s.UpsertLocation(LocationSample{UserID: "eng0", Latitude: 1})
	history = s.LocationHistory()
	assert.Equal(t, "eng0", history[0].UserID)
	assert.Equal(t, "eng6", history[9].UserID)

	sample, ok := s.LiveLocation("eng0")
	require.True(t, ok)
	assert.Equal(t, 1.0, sample.Latitude)
}

func TestCounts(t *testing.T) {
	s := New()
	s.UpsertPresence(PresenceEntry{UserID: "a", ClientKind: "web"})
	s.PushActivity(ActivityEvent{Kind: ActivityCreated})
	s.UpsertLocation(LocationSample{UserID: "a"})
	s.PushNotification("hi")

	assert.Equal(t, Counts{Presence: 1, Activity: 1, LiveLocations: 1, LocationHistory: 1, Notifications: 1}, s.Counts())
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.PushActivity(ActivityEvent{Kind: ActivityUpdated})
				s.PushNotification("n")
				s.UpsertLocation(LocationSample{UserID: fmt.Sprintf("u%d", i%13)})
			}
		}(w)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = s.Activity()
				_ = s.LocationHistory()
				_ = s.Counts()
			}
		}()
	}
	wg.Wait()

	c := s.Counts()
	assert.Equal(t, ActivityCapacity, c.Activity)
	assert.Equal(t, NotificationCapacity, c.Notifications)
	assert.Equal(t, LocationHistoryCapacity, c.LocationHistory)
	assert.Equal(t, 13, c.LiveLocations)
}
