package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Input bounds enforced at the ingestion boundary. The risk core assumes
// readings have already passed Validate.
var (
	MinTemperature = decimal.NewFromInt(-50)
	MaxTemperature = decimal.NewFromInt(200)
	MinVibration   = decimal.Zero
	MaxVibration   = decimal.NewFromInt(100)
	MinLoad        = decimal.Zero
	MaxLoad        = decimal.NewFromInt(100)
)

// SensorReading is one validated periodic sample from a piece of equipment.
// It is immutable once created.
type SensorReading struct {
	EquipmentID    string          `json:"equipment_id"`
	Timestamp      time.Time       `json:"timestamp"`
	Temperature    decimal.Decimal `json:"temperature"`
	Vibration      decimal.Decimal `json:"vibration"`
	LoadPercentage decimal.Decimal `json:"load_percentage"`
}

// LoggedReading is a SensorReading as kept in the reading log, with the id
// the log assigned to it.
type LoggedReading struct {
	ID string `json:"id"`
	SensorReading
}

// ReadingInput is the wire form of a SensorReading as received over HTTP or
// gRPC. Nil fields are reported as missing by Validate.
type ReadingInput struct {
	EquipmentID    string           `json:"equipment_id"`
	Timestamp      *time.Time       `json:"timestamp,omitempty"`
	Temperature    *decimal.Decimal `json:"temperature"`
	Vibration      *decimal.Decimal `json:"vibration"`
	LoadPercentage *decimal.Decimal `json:"load_percentage"`
}

// NewReadingInput converts a reading back into its wire form.
func NewReadingInput(r SensorReading) ReadingInput {
	in := ReadingInput{
		EquipmentID:    r.EquipmentID,
		Temperature:    &r.Temperature,
		Vibration:      &r.Vibration,
		LoadPercentage: &r.LoadPercentage,
	}
	if !r.Timestamp.IsZero() {
		ts := r.Timestamp
		in.Timestamp = &ts
	}
	return in
}

// ValidationError lists every problem found in a ReadingInput.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, ", ")
}

// Validate checks required fields and the physical input ranges.
// It returns a *ValidationError describing every violation, or nil.
func (in ReadingInput) Validate() error {
	var problems []string
	if strings.TrimSpace(in.EquipmentID) == "" {
		problems = append(problems, "Equipment id is required")
	}
	problems = checkRange(problems, in.Temperature, "Temperature", MinTemperature, MaxTemperature, "°C")
	problems = checkRange(problems, in.Vibration, "Vibration", MinVibration, MaxVibration, " mm/s")
	problems = checkRange(problems, in.LoadPercentage, "Load percentage", MinLoad, MaxLoad, "%")
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func checkRange(problems []string, v *decimal.Decimal, name string, lo, hi decimal.Decimal, unit string) []string {
	switch {
	case v == nil:
		return append(problems, name+" is required")
	case v.LessThan(lo):
		return append(problems, name+" must be at least "+lo.String()+unit)
	case v.GreaterThan(hi):
		return append(problems, name+" must not exceed "+hi.String()+unit)
	}
	return problems
}

// Reading validates in and converts it to a SensorReading. A missing
// timestamp is filled with now, in UTC.
func (in ReadingInput) Reading(now time.Time) (SensorReading, error) {
	if err := in.Validate(); err != nil {
		return SensorReading{}, err
	}
	ts := now.UTC()
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		ts = in.Timestamp.UTC()
	}
	return SensorReading{
		EquipmentID:    strings.TrimSpace(in.EquipmentID),
		Timestamp:      ts,
		Temperature:    *in.Temperature,
		Vibration:      *in.Vibration,
		LoadPercentage: *in.LoadPercentage,
	}, nil
}
