package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/riskwatch/riskwatch/pkg/types"
	"github.com/riskwatch/riskwatch/server/internal/api"
	"github.com/riskwatch/riskwatch/server/internal/auth"
	"github.com/riskwatch/riskwatch/server/internal/dashboard"
	"github.com/riskwatch/riskwatch/server/internal/equipment"
	"github.com/riskwatch/riskwatch/server/internal/risk"
	"github.com/riskwatch/riskwatch/server/internal/store"
)

// --- test helpers -----------------------------------------------------------

type fixture struct {
	h     http.Handler
	store *store.Memory
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cat, err := equipment.New([]risk.Equipment{
		{ID: "PUMP-1", Name: "Main Pump", Type: "pump"},
		{ID: "FAN-2", Name: "Exhaust Fan", Type: "fan"},
	})
	if err != nil {
		t.Fatalf("equipment.New: %v", err)
	}
	st := store.NewMemory()
	h := api.New(api.Deps{
		Pipeline: risk.NewPipeline(risk.DefaultWeights, cat, st, risk.WithReadingLog(st)),
		History:  st,
		Catalog:  cat,
		Stats:    dashboard.NewSource(cat, st),
		Readings: st,
	})
	return fixture{h: h, store: st}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

func submit(t *testing.T, h http.Handler, id string, temp, vib, load float64, ts string) api.AssessmentResponse {
	t.Helper()
	body := map[string]interface{}{
		"equipment_id":    id,
		"temperature":     temp,
		"vibration":       vib,
		"load_percentage": load,
	}
	if ts != "" {
		body["timestamp"] = ts
	}
	b, _ := json.Marshal(body)
	rr := post(t, h, "/api/v1/readings", string(b))
	if rr.Code != http.StatusCreated {
		t.Fatalf("POST readings: status %d, body %s", rr.Code, rr.Body.String())
	}
	var a api.AssessmentResponse
	decode(t, rr, &a)
	return a
}

// --- readings ---------------------------------------------------------------

func TestReadings_Created(t *testing.T) {
	f := newFixture(t)
	a := submit(t, f.h, "PUMP-1", 140, 45, 95, "2024-05-01T12:00:00Z")

	if a.RiskScore.String() != "92.58" || a.RiskLevel != risk.LevelCritical {
		t.Errorf("assessment: got %s %s, want 92.58 CRITICAL", a.RiskScore, a.RiskLevel)
	}
	if a.EquipmentName != "Main Pump" {
		t.Errorf("EquipmentName: got %q", a.EquipmentName)
	}
	if a.Reason != "Primary risk factor: Temperature (140.0°C)" {
		t.Errorf("Reason: got %q", a.Reason)
	}
	if a.EventID == "" || f.store.Count() != 1 {
		t.Errorf("expected one recorded event, EventID=%q count=%d", a.EventID, f.store.Count())
	}
	if !a.Timestamp.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("Timestamp: got %s", a.Timestamp)
	}
}

func TestReadings_DefaultsTimestamp(t *testing.T) {
	f := newFixture(t)
	before := time.Now().Add(-time.Second)
	a := submit(t, f.h, "PUMP-1", 20, 5, 10, "")
	if a.Timestamp.Before(before) {
		t.Errorf("Timestamp: got %s, want about now", a.Timestamp)
	}
	if a.RiskLevel != risk.LevelLow || a.EventID != "" {
		t.Errorf("LOW with no history must not be recorded: %+v", a)
	}
}

func TestReadings_UnknownEquipmentStillScored(t *testing.T) {
	f := newFixture(t)
	a := submit(t, f.h, "GHOST-9", 100, 30, 70, "")
	if a.EquipmentName != risk.UnknownEquipment || a.RiskLevel != risk.LevelHigh {
		t.Errorf("got %+v", a)
	}
}

func TestReadings_ValidationErrors(t *testing.T) {
	f := newFixture(t)
	rr := post(t, f.h, "/api/v1/readings", `{"temperature": 250, "vibration": -1}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
	var body struct {
		Error    string   `json:"error"`
		Problems []string `json:"problems"`
	}
	decode(t, rr, &body)
	want := []string{
		"Equipment id is required",
		"Temperature must not exceed 200°C",
		"Vibration must be at least 0 mm/s",
		"Load percentage is required",
	}
	if strings.Join(body.Problems, "|") != strings.Join(want, "|") {
		t.Errorf("problems: got %q, want %q", body.Problems, want)
	}
	if f.store.Count() != 0 {
		t.Error("invalid reading reached the store")
	}
}

func TestReadings_MalformedJSON(t *testing.T) {
	f := newFixture(t)
	if rr := post(t, f.h, "/api/v1/readings", `{"equipment_id":`); rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
}

type failingProcessor struct{}

func (failingProcessor) Process(context.Context, types.SensorReading) (risk.Assessment, error) {
	return risk.Assessment{}, errors.New("disk full")
}

func TestReadings_ProcessFailure503(t *testing.T) {
	cat, _ := equipment.New(nil)
	st := store.NewMemory()
	h := api.New(api.Deps{Pipeline: failingProcessor{}, History: st, Catalog: cat, Stats: dashboard.NewSource(cat, st)})
	rr := post(t, h, "/api/v1/readings", `{"equipment_id":"A","temperature":1,"vibration":1,"load_percentage":1}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", rr.Code)
	}
}

// --- equipment risk ---------------------------------------------------------

func TestLatestRisk(t *testing.T) {
	f := newFixture(t)
	submit(t, f.h, "PUMP-1", 100, 30, 70, "2024-05-01T12:00:00Z")
	submit(t, f.h, "PUMP-1", 140, 45, 95, "2024-05-01T12:05:00Z")

	rr := get(t, f.h, "/api/v1/equipment/PUMP-1/risk/latest")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	var got api.RiskResponse
	decode(t, rr, &got)
	if got.RiskLevel != risk.LevelCritical || got.EquipmentName != "Main Pump" || got.RiskScore.String() != "92.58" {
		t.Errorf("latest: got %+v", got)
	}
}

func TestLatestRisk_NotFound(t *testing.T) {
	f := newFixture(t)
	cases := []struct{ path, msg string }{
		{"/api/v1/equipment/NOPE/risk/latest", "Equipment not found with id: NOPE"},
		{"/api/v1/equipment/FAN-2/risk/latest", "No risk data found for equipment: FAN-2"},
	}
	for _, tc := range cases {
		rr := get(t, f.h, tc.path)
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s: status %d, want 404", tc.path, rr.Code)
			continue
		}
		var body map[string]string
		decode(t, rr, &body)
		if body["error"] != tc.msg {
			t.Errorf("%s: error %q, want %q", tc.path, body["error"], tc.msg)
		}
	}
}

func TestRiskHistory(t *testing.T) {
	f := newFixture(t)
	for i, temp := range []float64{100, 140, 20} { // HIGH, CRITICAL, MEDIUM
		ts := time.Date(2024, 5, 1, 12, i, 0, 0, time.UTC).Format(time.RFC3339)
		submit(t, f.h, "PUMP-1", temp, 45, 95, ts)
	}

	rr := get(t, f.h, "/api/v1/equipment/PUMP-1/risk/history")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: %d", rr.Code)
	}
	var all []api.RiskResponse
	decode(t, rr, &all)
	if len(all) != 3 {
		t.Fatalf("history: got %d, want 3", len(all))
	}
	if !all[0].Timestamp.After(all[1].Timestamp) {
		t.Error("history not newest first")
	}

	rr = get(t, f.h, "/api/v1/equipment/PUMP-1/risk/history?limit=1")
	var one []api.RiskResponse
	decode(t, rr, &one)
	if len(one) != 1 {
		t.Errorf("limit=1: got %d", len(one))
	}

	if rr := get(t, f.h, "/api/v1/equipment/PUMP-1/risk/history?limit=abc"); rr.Code != http.StatusBadRequest {
		t.Errorf("bad limit: status %d, want 400", rr.Code)
	}
	if rr := get(t, f.h, "/api/v1/equipment/NOPE/risk/history"); rr.Code != http.StatusNotFound {
		t.Errorf("unknown equipment: status %d, want 404", rr.Code)
	}
}

func TestRiskHistory_EmptyArray(t *testing.T) {
	f := newFixture(t)
	rr := get(t, f.h, "/api/v1/equipment/FAN-2/risk/history")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("body: got %s, want []", rr.Body.String())
	}
}

// --- sensor logs ------------------------------------------------------------

func TestSensorLogs(t *testing.T) {
	f := newFixture(t)
	a := submit(t, f.h, "PUMP-1", 20, 5, 10, "2024-05-01T12:00:00Z") // LOW, no alert event
	submit(t, f.h, "PUMP-1", 30, 6, 20, "2024-05-01T12:01:00Z")
	submit(t, f.h, "PUMP-1", 40, 7, 30, "2024-05-01T12:02:00Z")
	submit(t, f.h, "FAN-2", 50, 8, 40, "2024-05-01T12:03:00Z")

	if a.ReadingID == "" {
		t.Error("ReadingID: empty")
	}

	cases := []struct {
		query string
		temps []string
	}{
		{"", []string{"40", "30", "20"}},
		{"?order=asc", []string{"20", "30", "40"}},
		{"?order=DESC&limit=1", []string{"40"}},
		{"?from=2024-05-01T12:01:00Z&to=2024-05-01T12:02:00Z", []string{"40", "30"}},
		{"?from=2024-05-01T12:01:00Z&order=asc", []string{"30", "40"}},
		{"?to=2024-05-01T11:00:00Z", []string{}},
	}
	for _, tc := range cases {
		rr := get(t, f.h, "/api/v1/equipment/PUMP-1/logs"+tc.query)
		if rr.Code != http.StatusOK {
			t.Fatalf("%q: status %d, body %s", tc.query, rr.Code, rr.Body.String())
		}
		var logs []api.SensorLogResponse
		decode(t, rr, &logs)
		temps := make([]string, len(logs))
		for i, l := range logs {
			temps[i] = l.Temperature.String()
			if l.EquipmentID != "PUMP-1" || l.ID == "" {
				t.Errorf("%q: entry %d: got %+v", tc.query, i, l)
			}
		}
		if strings.Join(temps, ",") != strings.Join(tc.temps, ",") {
			t.Errorf("%q: got %v, want %v", tc.query, temps, tc.temps)
		}
	}
}

func TestSensorLogs_BadQuery(t *testing.T) {
	f := newFixture(t)
	for _, q := range []string{
		"?limit=0",
		"?order=sideways",
		"?from=yesterday",
		"?to=2024-05-01",
		"?from=2024-05-02T00:00:00Z&to=2024-05-01T00:00:00Z",
	} {
		rr := get(t, f.h, "/api/v1/equipment/PUMP-1/logs"+q)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%q: status got %d, want 400", q, rr.Code)
		}
	}
}

func TestSensorLogs_UnknownEquipment(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/v1/equipment/NOPE/logs", "/api/v1/equipment/NOPE/logs/latest"} {
		rr := get(t, f.h, path)
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s: status got %d, want 404", path, rr.Code)
		}
	}
}

func TestLatestSensorLog(t *testing.T) {
	f := newFixture(t)
	rr := get(t, f.h, "/api/v1/equipment/PUMP-1/logs/latest")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("no logs: status got %d, want 404", rr.Code)
	}

	submit(t, f.h, "PUMP-1", 60, 10, 50, "2024-05-01T12:05:00Z")
	submit(t, f.h, "PUMP-1", 20, 5, 10, "2024-05-01T12:00:00Z") // older, submitted later

	rr = get(t, f.h, "/api/v1/equipment/PUMP-1/logs/latest")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: %d, body %s", rr.Code, rr.Body.String())
	}
	var l api.SensorLogResponse
	decode(t, rr, &l)
	if l.Temperature.String() != "60" || !l.Timestamp.Equal(time.Date(2024, 5, 1, 12, 5, 0, 0, time.UTC)) {
		t.Errorf("latest: got %+v", l)
	}
}

func TestSensorLogs_NotMountedWithoutLog(t *testing.T) {
	cat, _ := equipment.New([]risk.Equipment{{ID: "PUMP-1", Name: "Main Pump"}})
	st := store.NewMemory()
	h := api.New(api.Deps{Pipeline: risk.NewPipeline(risk.DefaultWeights, cat, st), History: st, Catalog: cat, Stats: dashboard.NewSource(cat, st)})
	if rr := get(t, h, "/api/v1/equipment/PUMP-1/logs"); rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}

// --- alerts -----------------------------------------------------------------

func TestAlerts(t *testing.T) {
	f := newFixture(t)
	submit(t, f.h, "PUMP-1", 100, 25, 50, "2024-05-01T12:00:00Z") // MEDIUM
	submit(t, f.h, "GHOST", 140, 45, 95, "2024-05-01T12:01:00Z")  // CRITICAL, not in catalog
	submit(t, f.h, "PUMP-1", 20, 5, 10, "2024-05-01T12:02:00Z")   // LOW recovery

	rr := get(t, f.h, "/api/v1/alerts")
	var def []api.AlertResponse
	decode(t, rr, &def)
	if len(def) != 2 {
		t.Fatalf("default alerts: got %d, want 2 (LOW excluded)", len(def))
	}
	if def[0].EquipmentID != "GHOST" || def[0].EquipmentName != "Unknown" || def[0].EquipmentType != "Unknown" {
		t.Errorf("alerts[0]: got %+v", def[0])
	}
	if def[1].EquipmentType != "pump" {
		t.Errorf("alerts[1].EquipmentType: got %q", def[1].EquipmentType)
	}

	rr = get(t, f.h, "/api/v1/alerts?level=low")
	var low []api.AlertResponse
	decode(t, rr, &low)
	if len(low) != 1 || low[0].RiskLevel != risk.LevelLow {
		t.Errorf("level=low: got %+v", low)
	}

	if rr := get(t, f.h, "/api/v1/alerts?level=SEVERE"); rr.Code != http.StatusBadRequest {
		t.Errorf("unknown level: status %d, want 400", rr.Code)
	}
	if rr := get(t, f.h, "/api/v1/alerts?limit=0"); rr.Code != http.StatusBadRequest {
		t.Errorf("limit=0: status %d, want 400", rr.Code)
	}
}

// --- dashboard, equipment, health ---------------------------------------------

func TestDashboardStats(t *testing.T) {
	f := newFixture(t)
	submit(t, f.h, "PUMP-1", 140, 45, 95, "")

	rr := get(t, f.h, "/api/v1/dashboard/stats")
	var st dashboard.Stats
	decode(t, rr, &st)
	if st.TotalEquipment != 2 || st.CriticalCount != 1 || st.WithoutHistory != 1 {
		t.Errorf("stats: got %+v", st)
	}
}

func TestListEquipment(t *testing.T) {
	f := newFixture(t)
	var list []risk.Equipment
	decode(t, get(t, f.h, "/api/v1/equipment"), &list)
	if len(list) != 2 || list[0].ID != "FAN-2" {
		t.Errorf("equipment: got %+v", list)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rr := get(t, f.h, "/api/v1/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: %d", rr.Code)
	}
	var body api.HealthResponse
	decode(t, rr, &body)
	if body.Status != "ok" {
		t.Errorf("status field: got %q", body.Status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	get(t, f.h, "/api/v1/health")
	rr := get(t, f.h, "/metrics")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "riskwatch_http_requests_total") {
		t.Errorf("metrics: status %d, riskwatch_http_requests_total missing", rr.Code)
	}
}

// --- cross-cutting ------------------------------------------------------------

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	rr := post(t, f.h, "/api/v1/alerts", "{}")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

func TestContentTypeJSON(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/v1/health", "/api/v1/alerts", "/api/v1/dashboard/stats", "/api/v1/nope"} {
		rr := get(t, f.h, path)
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s: Content-Type %q", path, ct)
		}
	}
}

func TestRequestID(t *testing.T) {
	f := newFixture(t)
	rr := get(t, f.h, "/api/v1/health")
	if rr.Header().Get(api.RequestIDHeader) == "" {
		t.Error("no request id assigned")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set(api.RequestIDHeader, "abc-123")
	rr = httptest.NewRecorder()
	f.h.ServeHTTP(rr, req)
	if got := rr.Header().Get(api.RequestIDHeader); got != "abc-123" {
		t.Errorf("request id: got %q, want abc-123", got)
	}
}

type panicCatalog struct{}

func (panicCatalog) FindEquipment(context.Context, string) (risk.Equipment, bool) { panic("boom") }
func (panicCatalog) List() []risk.Equipment                                       { panic("boom") }

func TestPanicRecovered(t *testing.T) {
	st := store.NewMemory()
	h := api.New(api.Deps{Catalog: panicCatalog{}, History: st})
	rr := get(t, h, "/api/v1/equipment")
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", rr.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	cat, _ := equipment.New(nil)
	st := store.NewMemory()
	h := api.New(api.Deps{
		Pipeline: risk.NewPipeline(risk.DefaultWeights, cat, st),
		History:  st,
		Catalog:  cat,
		Stats:    dashboard.NewSource(cat, st),
		Auth:     auth.APIKeyMiddleware("apikey", "X-API-Key", "k"),
	})

	if rr := get(t, h, "/api/v1/alerts"); rr.Code != http.StatusUnauthorized {
		t.Errorf("no key: status %d, want 401", rr.Code)
	}
	if rr := get(t, h, "/api/v1/health"); rr.Code != http.StatusOK {
		t.Errorf("health must stay open: status %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	req.Header.Set("X-API-Key", "k")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("with key: status %d, want 200", rr.Code)
	}
}

func TestAssessmentScoreIsJSONNumber(t *testing.T) {
	f := newFixture(t)
	rr := post(t, f.h, "/api/v1/readings", `{"equipment_id":"PUMP-1","temperature":"100","vibration":25,"load_percentage":50}`)
	if !strings.Contains(rr.Body.String(), `"risk_score":56.67`) {
		t.Errorf("body: %s", rr.Body.String())
	}
}
