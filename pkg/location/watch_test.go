package location

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgirmay/livetrack/pkg/geo"
	"github.com/jgirmay/livetrack/pkg/session"
)

type recordingSender struct {
	mu      sync.Mutex
	updates []session.LocationUpdate
	err     error
}

func (s *recordingSender) SendLocation(_ context.Context, u session.LocationUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.updates = append(s.updates, u)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

type failingProvider struct{}

func (failingProvider) Current(context.Context) (Fix, error) {
	return Fix{}, errors.New("no gps fix")
}

func TestWatchReportsImmediatelyAndPeriodically(t *testing.T) {
	sender := &recordingSender{}
	p := StaticProvider{Point: geo.Point{Lat: 28.6139, Lon: 77.2090}}

	sub := Watch(context.Background(), p, 10*time.Millisecond, sender, nil)
	defer sub.Stop()

	require.Eventually(t, func() bool { return sender.count() >= 3 }, time.Second, 5*time.Millisecond)

	sender.mu.Lock()
	first := sender.updates[0]
	sender.mu.Unlock()
	assert.Equal(t, 28.6139, first.Latitude)
	assert.Equal(t, 77.2090, first.Longitude)
	assert.False(t, first.Timestamp.IsZero())
	assert.GreaterOrEqual(t, sub.Sent(), int64(3))
}

func TestStopIsIdempotentAndReleases(t *testing.T) {
	sender := &recordingSender{}
	sub := Watch(context.Background(), StaticProvider{}, time.Hour, sender, nil)

	require.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 5*time.Millisecond)

	sub.Stop()
	sub.Stop()

	select {
	case <-sub.Done():
	default:
		t.Fatal("subscription still running after Stop")
	}
	assert.Equal(t, 1, sender.count())
}

func TestWatchEndsWithParentContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := Watch(ctx, StaticProvider{}, time.Hour, &recordingSender{}, nil)
	cancel()

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("watch did not end with its context")
	}
	sub.Stop()
}

func TestWatchCountsFailures(t *testing.T) {
	sub := Watch(context.Background(), failingProvider{}, 10*time.Millisecond, &recordingSender{}, nil)
	defer sub.Stop()
	require.Eventually(t, func() bool { return sub.Failed() >= 2 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, sub.Sent())

	notConnected := &recordingSender{err: session.ErrNotConnected}
	sub2 := Watch(context.Background(), StaticProvider{}, 10*time.Millisecond, notConnected, nil)
	time.Sleep(30 * time.Millisecond)
	sub2.Stop()
	assert.Zero(t, sub2.Sent())
	assert.Zero(t, sub2.Failed())
}

type movingProvider struct{ mps float64 }

func (p movingProvider) Current(context.Context) (Fix, error) {
	return Fix{Point: geo.Point{Lat: 28.6139, Lon: 77.2090}, Speed: SpeedFromMetersPerSecond(p.mps), At: time.Now()}, nil
}

func TestSpeedFromMetersPerSecond(t *testing.T) {
	assert.InDelta(t, 36.0, *SpeedFromMetersPerSecond(10), 1e-9)
	assert.Zero(t, *SpeedFromMetersPerSecond(0))
}

func TestWatchSendsSpeedInKmh(t *testing.T) {
	sender := &recordingSender{}
	sub := Watch(context.Background(), movingProvider{mps: 5}, time.Hour, sender, nil)
	defer sub.Stop()

	require.Eventually(t, func() bool { return sender.count() >= 1 }, time.Second, 5*time.Millisecond)

	sender.mu.Lock()
	first := sender.updates[0]
	sender.mu.Unlock()
	require.NotNil(t, first.Speed)
	assert.InDelta(t, 18.0, *first.Speed, 1e-9)
}
