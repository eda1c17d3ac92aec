// Package location periodically reports this client's own position over
// the event stream.
package location

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jgirmay/livetrack/pkg/geo"
	"github.com/jgirmay/livetrack/pkg/session"
)

// Fix is one position reading.
type Fix struct {
	Point    geo.Point
	Accuracy *float64
	Speed    *float64 // km/h, see SpeedFromMetersPerSecond
	Heading  *float64
	At       time.Time
}

// SpeedFromMetersPerSecond converts a device speed reading to km/h.
func SpeedFromMetersPerSecond(mps float64) *float64 {
	kmh := mps * 3.6
	return &kmh
}

// Provider yields the current position.
type Provider interface {
	Current(ctx context.Context) (Fix, error)
}

// Sender delivers a position report. *session.Manager implements it.
type Sender interface {
	SendLocation(ctx context.Context, u session.LocationUpdate) error
}

// StaticProvider always reports the same point, e.g. a fixed depot.
type StaticProvider struct {
	Point    geo.Point
	Accuracy *float64
}

func (p StaticProvider) Current(context.Context) (Fix, error) {
	return Fix{Point: p.Point, Accuracy: p.Accuracy, At: time.Now()}, nil
}

// Subscription is a running watch. Stop releases it.
type Subscription struct {
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	sent     atomic.Int64
	failed   atomic.Int64
}

// Watch reports a fix immediately and then every interval until the
// returned subscription is stopped or ctx is cancelled.
func Watch(ctx context.Context, p Provider, interval time.Duration, s Sender, logger *zap.Logger) *Subscription {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	go sub.run(ctx, p, interval, s, logger.Named("location"))
	return sub
}

func (sub *Subscription) run(ctx context.Context, p Provider, interval time.Duration, s Sender, logger *zap.Logger) {
	defer close(sub.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		sub.report(ctx, p, s, logger)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (sub *Subscription) report(ctx context.Context, p Provider, s Sender, logger *zap.Logger) {
	fix, err := p.Current(ctx)
	if err != nil {
		sub.failed.Add(1)
		logger.Warn("failed to read position", zap.Error(err))
		return
	}

	err = s.SendLocation(ctx, session.LocationUpdate{
		Latitude:  fix.Point.Lat,
		Longitude: fix.Point.Lon,
		Accuracy:  fix.Accuracy,
		Speed:     fix.Speed,
		Heading:   fix.Heading,
		Timestamp: fix.At,
	})
	switch {
	case err == nil:
		sub.sent.Add(1)
	case errors.Is(err, session.ErrNotConnected), errors.Is(err, context.Canceled):
		logger.Debug("skipping position report", zap.Error(err))
	default:
		sub.failed.Add(1)
		logger.Warn("failed to send position", zap.Error(err))
	}
}

// Stop ends the watch and waits for the reporting goroutine to exit.
// Calling it more than once is safe.
func (sub *Subscription) Stop() {
	sub.stopOnce.Do(sub.cancel)
	<-sub.done
}

// Done is closed once the watch has ended.
func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}

// Sent is the number of reports delivered.
func (sub *Subscription) Sent() int64 {
	return sub.sent.Load()
}

// Failed is the number of reports that could not be read or sent.
func (sub *Subscription) Failed() int64 {
	return sub.failed.Load()
}
