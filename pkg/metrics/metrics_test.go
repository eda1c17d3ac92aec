package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.FrameReceived("user_status")
	c.FrameReceived("user_status")
	c.DecodeError("invalid_json")
	c.ReconnectAttempt()
	c.ZoneTransition("enter", "office")
	c.MovementChange("break")
	c.NotificationAppended()
	c.SetActiveZones(3)
	c.SetConnectionState("connected", "disconnected", "connecting", "connected")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.framesReceived.WithLabelValues("user_status")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.decodeErrors.WithLabelValues("invalid_json")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.reconnects))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.zoneTransitions.WithLabelValues("enter", "office")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.movementChanges.WithLabelValues("break")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.notifications))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.activeZones))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.connectionState.WithLabelValues("connected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.connectionState.WithLabelValues("disconnected")))

	count, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Greater(t, count, 0)
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.FrameReceived("x")
		c.DecodeError("x")
		c.ReconnectAttempt()
		c.SetConnectionState("connected")
		c.ZoneTransition("enter", "office")
		c.MovementChange("break")
		c.NotificationAppended()
		c.ZoneRefreshFailed()
		c.SetActiveZones(1)
	})
}
