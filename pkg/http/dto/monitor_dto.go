package dto

import (
	"time"

	"github.com/jgirmay/livetrack/pkg/eventstore"
	"github.com/jgirmay/livetrack/pkg/movement"
)

// ErrorResponse is a standard error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// PresenceResponse lists the online (user, client) pairs.
type PresenceResponse struct {
	Online []eventstore.PresenceEntry `json:"online"`
	Count  int                        `json:"count"`
}

// ActivityResponse is the task activity feed, newest first.
type ActivityResponse struct {
	Events []eventstore.ActivityEvent `json:"events"`
	Count  int                        `json:"count"`
}

// LocationsResponse carries the live positions and the recent history.
type LocationsResponse struct {
	Live    []eventstore.LocationSample `json:"live"`
	History []eventstore.LocationSample `json:"history"`
}

// NotificationsResponse is the notification feed, newest first.
type NotificationsResponse struct {
	Notifications []eventstore.Notification `json:"notifications"`
	Count         int                       `json:"count"`
}

// StatsResponse is a tracking aggregate with durations in seconds.
type StatsResponse struct {
	UserID                     string             `json:"userId"`
	Start                      *time.Time         `json:"start,omitempty"`
	End                        *time.Time         `json:"end,omitempty"`
	TotalDistanceMeters        float64            `json:"totalDistanceMeters"`
	AverageSpeedKmh            float64            `json:"averageSpeedKmh"`
	TimeAtCustomerSitesSeconds float64            `json:"timeAtCustomerSitesSeconds"`
	TimeInTransitSeconds       float64            `json:"timeInTransitSeconds"`
	SecondsByKind              map[string]float64 `json:"secondsByKind"`
	SampleCount                int                `json:"sampleCount"`
}

// NewStatsResponse converts movement stats for the wire.
func NewStatsResponse(userID string, start, end time.Time, s movement.Stats) StatsResponse {
	resp := StatsResponse{
		UserID:                     userID,
		TotalDistanceMeters:        s.TotalDistanceMeters,
		AverageSpeedKmh:            s.AverageSpeedKmh,
		TimeAtCustomerSitesSeconds: s.TimeAtCustomerSites.Seconds(),
		TimeInTransitSeconds:       s.TimeInTransit.Seconds(),
		SecondsByKind:              make(map[string]float64, len(s.ByKind)),
		SampleCount:                s.SampleCount,
	}
	if !start.IsZero() {
		resp.Start = &start
	}
	if !end.IsZero() {
		resp.End = &end
	}
	for kind, d := range s.ByKind {
		resp.SecondsByKind[string(kind)] = d.Seconds()
	}
	return resp
}
