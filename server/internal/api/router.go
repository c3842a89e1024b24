package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the API serves from.
type Deps struct {
	Pipeline Processor
	History  History
	Catalog  Catalog
	Stats    StatsSource

	// Readings, when set, serves the /equipment/{id}/logs routes.
	Readings Readings

	// WebSocket, when set, is mounted at /ws/alerts.
	WebSocket http.Handler

	// Auth wraps the /api/v1 routes, e.g. auth.APIKeyMiddleware.
	Auth func(http.Handler) http.Handler
}

// New builds the router.
func New(d Deps) http.Handler {
	h := &Handler{
		pipeline: d.Pipeline,
		history:  d.History,
		catalog:  d.Catalog,
		stats:    d.Stats,
		readings: d.Readings,
		now:      time.Now,
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(logRequests)
	r.Use(recoverPanics)
	r.Use(instrument)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/api/v1/health", h.health)
	if d.WebSocket != nil {
		r.Handle("/ws/alerts", d.WebSocket)
	}

	r.Group(func(r chi.Router) {
		if d.Auth != nil {
			r.Use(d.Auth)
		}
		r.Post("/api/v1/readings", h.postReadings)
		r.Get("/api/v1/equipment", h.listEquipment)
		r.Get("/api/v1/equipment/{id}/risk/latest", h.latestRisk)
		r.Get("/api/v1/equipment/{id}/risk/history", h.riskHistory)
		if d.Readings != nil {
			r.Get("/api/v1/equipment/{id}/logs", h.sensorLogs)
			r.Get("/api/v1/equipment/{id}/logs/latest", h.latestSensorLog)
		}
		r.Get("/api/v1/alerts", h.alerts)
		r.Get("/api/v1/dashboard/stats", h.dashboardStats)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		jsonErr(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}
