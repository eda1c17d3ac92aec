//go:build debug

package eventstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvariantViolationPanicsInDebugBuilds(t *testing.T) {
	t.Run("activity over capacity", func(t *testing.T) {
		s := New(WithClock(fixedClock()))
		s.activity.size = ActivityCapacity + 5

		assert.PanicsWithValue(t, "eventstore: invariant violated: activity feed holds 25 entries", func() {
			s.PushActivity(ActivityEvent{Kind: ActivityCreated, SubjectID: "t1", SubjectTitle: "Fix boiler"})
		})
	})

	t.Run("duplicate user in location history", func(t *testing.T) {
		s := New(WithClock(fixedClock()))
		s.locationHistory = []LocationSample{{UserID: "eng1"}, {UserID: "eng1"}}

		assert.PanicsWithValue(t, "eventstore: invariant violated: location history holds duplicate user eng1", func() {
			s.UpsertLocation(LocationSample{UserID: "eng2"})
		})
	})
}
