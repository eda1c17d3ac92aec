package handlers

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterMonitorRoutes registers the health, monitor, tracking and metrics
// routes. gatherer may be nil to leave /metrics unmounted.
func RegisterMonitorRoutes(router chi.Router, handlers *MonitorHandlers, gatherer prometheus.Gatherer) {
	router.Get("/health", handlers.GetHealth)
	router.Get("/health/ready", handlers.GetReady)
	router.Get("/health/live", handlers.GetLive)

	router.Route("/api/monitor", func(r chi.Router) {
		r.Get("/status", handlers.GetStatus)
		r.Get("/presence", handlers.GetPresence)
		r.Get("/activity", handlers.GetActivity)
		r.Get("/locations", handlers.GetLocations)
		r.Get("/notifications", handlers.GetNotifications)
		r.Get("/zones/{userId}", handlers.GetZoneMemberships)
	})

	router.Route("/api/tracking", func(r chi.Router) {
		r.Get("/stats/{userId}", handlers.GetTrackingStats)
	})

	if gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
}
