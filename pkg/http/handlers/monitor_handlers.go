package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jgirmay/livetrack/pkg/eventstore"
	"github.com/jgirmay/livetrack/pkg/geofence"
	"github.com/jgirmay/livetrack/pkg/http/dto"
	"github.com/jgirmay/livetrack/pkg/monitoring"
	"github.com/jgirmay/livetrack/pkg/movement"
	"github.com/jgirmay/livetrack/pkg/session"
)

// StatusProvider is implemented by *session.Manager.
type StatusProvider interface {
	Status() session.Status
}

// MembershipSource is implemented by *geofence.Evaluator.
type MembershipSource interface {
	Memberships(userID string) []geofence.Membership
}

// HealthSource is implemented by *monitoring.HealthChecker.
type HealthSource interface {
	Check(ctx context.Context) *monitoring.Report
	Ready() bool
	Live() bool
}

// MonitorHandlers serves read-only views over the live monitor.
type MonitorHandlers struct {
	store       *eventstore.Store
	session     StatusProvider
	memberships MembershipSource
	history     movement.History
	health      HealthSource
	logger      *zap.Logger
}

// NewMonitorHandlers creates monitor handlers. memberships, history and
// health may be nil; their endpoints then answer 503.
func NewMonitorHandlers(
	store *eventstore.Store,
	sessionStatus StatusProvider,
	memberships MembershipSource,
	history movement.History,
	health HealthSource,
	logger *zap.Logger,
) *MonitorHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MonitorHandlers{
		store:       store,
		session:     sessionStatus,
		memberships: memberships,
		history:     history,
		health:      health,
		logger:      logger.Named("http"),
	}
}

// GetHealth returns the aggregated health report.
// GET /health
func (h *MonitorHandlers) GetHealth(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		writeError(w, http.StatusServiceUnavailable, "health checks are not configured", "HEALTH_UNAVAILABLE")
		return
	}
	report := h.health.Check(r.Context())
	status := http.StatusOK
	if report.Status == monitoring.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// GetReady answers 200 once the event stream is connected.
// GET /health/ready
func (h *MonitorHandlers) GetReady(w http.ResponseWriter, r *http.Request) {
	if h.health == nil || !h.health.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

// GetLive answers 200 until the session has been stopped.
// GET /health/live
func (h *MonitorHandlers) GetLive(w http.ResponseWriter, r *http.Request) {
	if h.health != nil && !h.health.Live() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"live": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"live": true})
}

// GetStatus returns the session state and collection sizes.
// GET /api/monitor/status
func (h *MonitorHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session":   h.session.Status(),
		"counts":    h.store.Counts(),
		"timestamp": time.Now().UTC(),
	})
}

// GetPresence lists online users.
// GET /api/monitor/presence
func (h *MonitorHandlers) GetPresence(w http.ResponseWriter, r *http.Request) {
	online := h.store.Presence()
	writeJSON(w, http.StatusOK, dto.PresenceResponse{Online: online, Count: len(online)})
}

// GetActivity returns the task activity feed.
// GET /api/monitor/activity
func (h *MonitorHandlers) GetActivity(w http.ResponseWriter, r *http.Request) {
	events := h.store.Activity()
	writeJSON(w, http.StatusOK, dto.ActivityResponse{Events: events, Count: len(events)})
}

// GetLocations returns live positions and recent history.
// GET /api/monitor/locations
func (h *MonitorHandlers) GetLocations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.LocationsResponse{
		Live:    h.store.LiveLocations(),
		History: h.store.LocationHistory(),
	})
}

// GetNotifications returns the notification feed.
// GET /api/monitor/notifications
func (h *MonitorHandlers) GetNotifications(w http.ResponseWriter, r *http.Request) {
	feed := h.store.Notifications()
	writeJSON(w, http.StatusOK, dto.NotificationsResponse{Notifications: feed, Count: len(feed)})
}

// GetZoneMemberships returns a user's geofence membership states.
// GET /api/monitor/zones/{userId}
func (h *MonitorHandlers) GetZoneMemberships(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required", "INVALID_REQUEST")
		return
	}
	if h.memberships == nil {
		writeError(w, http.StatusServiceUnavailable, "geofencing is not enabled", "GEOFENCE_UNAVAILABLE")
		return
	}
	memberships := h.memberships.Memberships(userID)
	if memberships == nil {
		memberships = []geofence.Membership{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":      userID,
		"memberships": memberships,
	})
}

// GetTrackingStats aggregates a user's tracking history in a window.
// GET /api/tracking/stats/{userId}?start=&end=
func (h *MonitorHandlers) GetTrackingStats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required", "INVALID_REQUEST")
		return
	}
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "tracking history is not enabled", "HISTORY_UNAVAILABLE")
		return
	}

	start, err := parseTime(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be RFC3339", "INVALID_REQUEST")
		return
	}
	end, err := parseTime(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be RFC3339", "INVALID_REQUEST")
		return
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		writeError(w, http.StatusBadRequest, "end is before start", "INVALID_REQUEST")
		return
	}

	stats, err := movement.StatsFor(r.Context(), h.history, userID, start, end)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		h.logger.Error("Failed to aggregate tracking stats", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load tracking history", "INTERNAL_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewStatsResponse(userID, start, end, stats))
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes an error response
func writeError(w http.ResponseWriter, statusCode int, message, code string) {
	writeJSON(w, statusCode, &dto.ErrorResponse{
		Error:     code,
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	})
}
