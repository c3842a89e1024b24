package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/riskwatch/riskwatch/pkg/types"
	"github.com/riskwatch/riskwatch/server/internal/dashboard"
	"github.com/riskwatch/riskwatch/server/internal/risk"
	"github.com/riskwatch/riskwatch/server/internal/store"
)

// maxBodyBytes caps the size of a submitted reading.
const maxBodyBytes = 64 << 10

// Processor scores one validated reading.
type Processor interface {
	Process(ctx context.Context, r types.SensorReading) (risk.Assessment, error)
}

// History is the read side of the alert event store.
type History interface {
	LatestAlertEvent(ctx context.Context, equipmentID string) (risk.AlertEvent, bool, error)
	History(ctx context.Context, equipmentID string, limit int) ([]risk.AlertEvent, error)
	Recent(ctx context.Context, levels []risk.Level, limit int) ([]risk.AlertEvent, error)
}

// Catalog resolves and lists equipment.
type Catalog interface {
	FindEquipment(ctx context.Context, id string) (risk.Equipment, bool)
	List() []risk.Equipment
}

// Readings is the read side of the sensor reading log.
type Readings interface {
	Readings(ctx context.Context, equipmentID string, q store.ReadingQuery) ([]types.LoggedReading, error)
	LatestReading(ctx context.Context, equipmentID string) (types.LoggedReading, bool, error)
}

// StatsSource computes the dashboard summary.
type StatsSource interface {
	Stats(ctx context.Context) (dashboard.Stats, error)
}

// Handler serves the /api/v1 routes.
type Handler struct {
	pipeline Processor
	history  History
	catalog  Catalog
	stats    StatsSource
	readings Readings
	now      func() time.Time // injectable for deterministic tests
}

// postReadings handles POST /api/v1/readings.
func (h *Handler) postReadings(w http.ResponseWriter, r *http.Request) {
	var in types.ReadingInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		jsonErr(w, http.StatusBadRequest, "malformed JSON body: "+err.Error())
		return
	}

	reading, err := in.Reading(h.now())
	if err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			jsonResp(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Problems: verr.Problems})
			return
		}
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := h.pipeline.Process(r.Context(), reading)
	if err != nil {
		slog.Error("api: process reading failed", "equipment_id", reading.EquipmentID, "err", err)
		jsonErr(w, http.StatusServiceUnavailable, "alert history unavailable")
		return
	}
	jsonResp(w, http.StatusCreated, toAssessmentResponse(a))
}

// listEquipment handles GET /api/v1/equipment.
func (h *Handler) listEquipment(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, h.catalog.List())
}

// latestRisk handles GET /api/v1/equipment/{id}/risk/latest.
func (h *Handler) latestRisk(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	eq, ok := h.catalog.FindEquipment(r.Context(), id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "Equipment not found with id: "+id)
		return
	}

	ev, found, err := h.history.LatestAlertEvent(r.Context(), id)
	if err != nil {
		h.storeErr(w, err)
		return
	}
	if !found {
		jsonErr(w, http.StatusNotFound, "No risk data found for equipment: "+id)
		return
	}
	jsonResp(w, http.StatusOK, toRiskResponse(ev, eq.Name))
}

// riskHistory handles GET /api/v1/equipment/{id}/risk/history.
func (h *Handler) riskHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	eq, ok := h.catalog.FindEquipment(r.Context(), id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "Equipment not found with id: "+id)
		return
	}
	limit, err := parseLimit(r, 100)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.history.History(r.Context(), id, limit)
	if err != nil {
		h.storeErr(w, err)
		return
	}
	out := make([]RiskResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, toRiskResponse(ev, eq.Name))
	}
	jsonResp(w, http.StatusOK, out)
}

// sensorLogs handles GET /api/v1/equipment/{id}/logs.
func (h *Handler) sensorLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.catalog.FindEquipment(r.Context(), id); !ok {
		jsonErr(w, http.StatusNotFound, "Equipment not found with id: "+id)
		return
	}
	q, err := parseReadingQuery(r)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	logged, err := h.readings.Readings(r.Context(), id, q)
	if err != nil {
		h.readingLogErr(w, err)
		return
	}
	out := make([]SensorLogResponse, 0, len(logged))
	for _, lr := range logged {
		out = append(out, toSensorLogResponse(lr))
	}
	jsonResp(w, http.StatusOK, out)
}

// latestSensorLog handles GET /api/v1/equipment/{id}/logs/latest.
func (h *Handler) latestSensorLog(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.catalog.FindEquipment(r.Context(), id); !ok {
		jsonErr(w, http.StatusNotFound, "Equipment not found with id: "+id)
		return
	}

	lr, found, err := h.readings.LatestReading(r.Context(), id)
	if err != nil {
		h.readingLogErr(w, err)
		return
	}
	if !found {
		jsonErr(w, http.StatusNotFound, "No sensor logs found for equipment: "+id)
		return
	}
	jsonResp(w, http.StatusOK, toSensorLogResponse(lr))
}

// alerts handles GET /api/v1/alerts.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, 50)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	levels := risk.AlertLevels
	if raw := strings.TrimSpace(r.URL.Query().Get("level")); raw != "" {
		l, err := risk.ParseLevel(raw)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, fmt.Sprintf("unknown level %q: want LOW|MEDIUM|HIGH|CRITICAL", raw))
			return
		}
		levels = []risk.Level{l}
	}

	events, err := h.history.Recent(r.Context(), levels, limit)
	if err != nil {
		h.storeErr(w, err)
		return
	}
	out := make([]AlertResponse, 0, len(events))
	for _, ev := range events {
		eq, found := h.catalog.FindEquipment(r.Context(), ev.EquipmentID)
		out = append(out, toAlertResponse(ev, eq, found))
	}
	jsonResp(w, http.StatusOK, out)
}

// dashboardStats handles GET /api/v1/dashboard/stats.
func (h *Handler) dashboardStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.stats.Stats(r.Context())
	if err != nil {
		h.storeErr(w, err)
		return
	}
	jsonResp(w, http.StatusOK, st)
}

// health handles GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, HealthResponse{Status: "ok", Time: h.now().UTC()})
}

func (h *Handler) storeErr(w http.ResponseWriter, err error) {
	slog.Error("api: alert history query failed", "err", err)
	jsonErr(w, http.StatusServiceUnavailable, "alert history unavailable")
}

func (h *Handler) readingLogErr(w http.ResponseWriter, err error) {
	slog.Error("api: reading log query failed", "err", err)
	jsonErr(w, http.StatusServiceUnavailable, "reading log unavailable")
}

// parseReadingQuery reads ?limit=, ?order=asc|desc and the inclusive RFC 3339
// bounds ?from= and ?to=.
func parseReadingQuery(r *http.Request) (store.ReadingQuery, error) {
	limit, err := parseLimit(r, store.DefaultReadingLimit)
	if err != nil {
		return store.ReadingQuery{}, err
	}
	q := store.ReadingQuery{Limit: limit}

	switch order := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("order"))); order {
	case "", "desc":
	case "asc":
		q.Ascending = true
	default:
		return store.ReadingQuery{}, fmt.Errorf("order must be asc or desc, got %q", order)
	}

	if q.From, err = parseTime(r, "from"); err != nil {
		return store.ReadingQuery{}, err
	}
	if q.To, err = parseTime(r, "to"); err != nil {
		return store.ReadingQuery{}, err
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return store.ReadingQuery{}, errors.New("from must not be after to")
	}
	return q, nil
}

func parseTime(r *http.Request, key string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC 3339 timestamp, got %q", key, raw)
	}
	return t, nil
}

// parseLimit reads ?limit=, defaulting to def. Non-positive or non-numeric
// values are rejected.
func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer, got %q", raw)
	}
	return n, nil
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("api: encode response", "err", err)
	}
}

func jsonErr(w http.ResponseWriter, status int, msg string) {
	jsonResp(w, status, errorResponse{Error: msg})
}
