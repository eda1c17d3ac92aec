package movement

import (
	"sort"
	"time"

	"github.com/jgirmay/livetrack/pkg/geo"
)

// Stats are aggregates over a user's samples in a window.
type Stats struct {
	// TotalDistanceMeters is the path length: the sum of distances between
	// consecutive samples, not the displacement.
	TotalDistanceMeters float64
	// AverageSpeedKmh is the mean of the samples that carry a speed.
	AverageSpeedKmh     float64
	TimeAtCustomerSites time.Duration
	TimeInTransit       time.Duration
	ByKind              map[Kind]time.Duration
	SampleCount         int
}

// Aggregate computes Stats over the samples whose timestamps fall in
// [start, end]. A zero start or end leaves that side open. Elapsed time
// between consecutive samples is attributed to the kind of the later one.
func Aggregate(samples []Sample, start, end time.Time) Stats {
	window := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if !start.IsZero() && s.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && s.Timestamp.After(end) {
			continue
		}
		window = append(window, s)
	}
	sort.SliceStable(window, func(i, j int) bool {
		return window[i].Timestamp.Before(window[j].Timestamp)
	})

	stats := Stats{ByKind: make(map[Kind]time.Duration), SampleCount: len(window)}

	var speedSum float64
	var speedCount int
	for i, s := range window {
		if s.SpeedKmh != nil {
			speedSum += *s.SpeedKmh
			speedCount++
		}
		if i == 0 {
			continue
		}
		prev := window[i-1]
		stats.TotalDistanceMeters += geo.DistanceMeters(prev.Point, s.Point)

		elapsed := s.Timestamp.Sub(prev.Timestamp)
		stats.ByKind[s.Kind] += elapsed
		switch s.Kind {
		case AtCustomerLocation:
			stats.TimeAtCustomerSites += elapsed
		case TravelingToCustomer:
			stats.TimeInTransit += elapsed
		}
	}
	if speedCount > 0 {
		stats.AverageSpeedKmh = speedSum / float64(speedCount)
	}
	return stats
}
