package api

import (
	"encoding/json"
	"time"

	"github.com/riskwatch/riskwatch/pkg/types"
	"github.com/riskwatch/riskwatch/server/internal/risk"
)

// unknown is shown for equipment missing from the catalog.
const unknown = risk.UnknownEquipment

// AssessmentResponse is the payload of POST /api/v1/readings.
type AssessmentResponse struct {
	EquipmentID    string      `json:"equipment_id"`
	EquipmentName  string      `json:"equipment_name"`
	Timestamp      time.Time   `json:"timestamp"`
	RiskScore      json.Number `json:"risk_score"`
	RiskLevel      risk.Level  `json:"risk_level"`
	Reason         string      `json:"reason"`
	Temperature    json.Number `json:"temperature"`
	Vibration      json.Number `json:"vibration"`
	LoadPercentage json.Number `json:"load_percentage"`
	EventID        string      `json:"event_id,omitempty"`
	ReadingID      string      `json:"reading_id,omitempty"`
}

// RiskResponse is one alert event of a single piece of equipment, as served
// by the latest and history endpoints.
type RiskResponse struct {
	EventID       string      `json:"event_id"`
	EquipmentID   string      `json:"equipment_id"`
	EquipmentName string      `json:"equipment_name"`
	Timestamp     time.Time   `json:"timestamp"`
	RiskScore     json.Number `json:"risk_score"`
	RiskLevel     risk.Level  `json:"risk_level"`
	Reason        string      `json:"reason"`
}

// AlertResponse is one entry of GET /api/v1/alerts.
type AlertResponse struct {
	ID            string      `json:"id"`
	EquipmentID   string      `json:"equipment_id"`
	EquipmentName string      `json:"equipment_name"`
	EquipmentType string      `json:"equipment_type"`
	Timestamp     time.Time   `json:"timestamp"`
	RiskScore     json.Number `json:"risk_score"`
	RiskLevel     risk.Level  `json:"risk_level"`
	Reason        string      `json:"reason"`
}

// SensorLogResponse is one logged reading, as served by the logs endpoints.
type SensorLogResponse struct {
	ID             string      `json:"id"`
	EquipmentID    string      `json:"equipment_id"`
	Timestamp      time.Time   `json:"timestamp"`
	Temperature    json.Number `json:"temperature"`
	Vibration      json.Number `json:"vibration"`
	LoadPercentage json.Number `json:"load_percentage"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

func toAssessmentResponse(a risk.Assessment) AssessmentResponse {
	return AssessmentResponse{
		EquipmentID:    a.EquipmentID,
		EquipmentName:  a.EquipmentName,
		Timestamp:      a.Timestamp,
		RiskScore:      json.Number(a.RiskScore.StringFixed(2)),
		RiskLevel:      a.Level,
		Reason:         a.Reason,
		Temperature:    json.Number(a.Temperature.String()),
		Vibration:      json.Number(a.Vibration.String()),
		LoadPercentage: json.Number(a.LoadPercentage.String()),
		EventID:        a.EventID,
		ReadingID:      a.ReadingID,
	}
}

func toRiskResponse(ev risk.AlertEvent, name string) RiskResponse {
	return RiskResponse{
		EventID:       ev.ID,
		EquipmentID:   ev.EquipmentID,
		EquipmentName: name,
		Timestamp:     ev.Timestamp,
		RiskScore:     json.Number(ev.RiskScore.StringFixed(2)),
		RiskLevel:     ev.Level,
		Reason:        ev.Reason,
	}
}

func toAlertResponse(ev risk.AlertEvent, eq risk.Equipment, found bool) AlertResponse {
	name, typ := unknown, unknown
	if found {
		if eq.Name != "" {
			name = eq.Name
		}
		if eq.Type != "" {
			typ = eq.Type
		}
	}
	return AlertResponse{
		ID:            ev.ID,
		EquipmentID:   ev.EquipmentID,
		EquipmentName: name,
		EquipmentType: typ,
		Timestamp:     ev.Timestamp,
		RiskScore:     json.Number(ev.RiskScore.StringFixed(2)),
		RiskLevel:     ev.Level,
		Reason:        ev.Reason,
	}
}

func toSensorLogResponse(lr types.LoggedReading) SensorLogResponse {
	return SensorLogResponse{
		ID:             lr.ID,
		EquipmentID:    lr.EquipmentID,
		Timestamp:      lr.Timestamp,
		Temperature:    json.Number(lr.Temperature.String()),
		Vibration:      json.Number(lr.Vibration.String()),
		LoadPercentage: json.Number(lr.LoadPercentage.String()),
	}
}
