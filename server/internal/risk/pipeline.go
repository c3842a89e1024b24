package risk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/riskwatch/riskwatch/pkg/types"
	"github.com/riskwatch/riskwatch/server/internal/metrics"
)

const (
	// UnknownEquipment is the display name used when the equipment id is not
	// in the catalog.
	UnknownEquipment = "Unknown"

	// TopicAlerts is the topic HIGH and CRITICAL assessments are published on.
	TopicAlerts = "alerts"

	defaultPushTimeout = 5 * time.Second
)

// Equipment is the catalog metadata for one piece of equipment.
type Equipment struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type,omitempty" yaml:"type"`
	Location string `json:"location,omitempty" yaml:"location"`
	Notes    string `json:"notes,omitempty" yaml:"notes"`
}

// AlertEvent is one durable, append-only record of a significant
// classification. It is never updated once saved.
type AlertEvent struct {
	ID          string          `json:"id"`
	EquipmentID string          `json:"equipment_id"`
	Timestamp   time.Time       `json:"timestamp"`
	RiskScore   decimal.Decimal `json:"risk_score"`
	Level       Level           `json:"risk_level"`
	Reason      string          `json:"reason"`
}

// Assessment is the result of scoring one reading.
type Assessment struct {
	EquipmentID    string          `json:"equipment_id"`
	EquipmentName  string          `json:"equipment_name"`
	Timestamp      time.Time       `json:"timestamp"`
	RiskScore      decimal.Decimal `json:"risk_score"`
	Level          Level           `json:"risk_level"`
	Reason         string          `json:"reason"`
	Temperature    decimal.Decimal `json:"temperature"`
	Vibration      decimal.Decimal `json:"vibration"`
	LoadPercentage decimal.Decimal `json:"load_percentage"`

	// EventID is the id of the alert event created for this reading, empty
	// when the debounce gate suppressed it.
	EventID string `json:"event_id,omitempty"`
	// ReadingID is the reading log id, empty when no log is configured.
	ReadingID string `json:"reading_id,omitempty"`
}

// PartitionKey keys streamed assessments by equipment so per-equipment
// ordering is kept.
func (a Assessment) PartitionKey() string { return a.EquipmentID }

// EquipmentFinder resolves equipment metadata for display. A miss is not an
// error.
type EquipmentFinder interface {
	FindEquipment(ctx context.Context, id string) (Equipment, bool)
}

// AlertHistory is the durable log of alert events.
type AlertHistory interface {
	// LatestAlertEvent returns the event saved last for the equipment, or
	// false when none exists. Insertion order wins over reading timestamps.
	LatestAlertEvent(ctx context.Context, equipmentID string) (AlertEvent, bool, error)

	// SaveAlertEvent appends ev and returns it with its assigned id.
	SaveAlertEvent(ctx context.Context, ev AlertEvent) (AlertEvent, error)
}

// ReadingRecorder durably logs every reading the pipeline accepts.
type ReadingRecorder interface {
	SaveReading(ctx context.Context, r types.SensorReading) (types.LoggedReading, error)
}

// Publisher pushes a payload to real-time subscribers of topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// Assess scores r with weights w. It does not consult history and leaves
// EquipmentName and EventID empty.
func Assess(r types.SensorReading, w Weights) Assessment {
	norm := NormalizeReading(r)
	score := Score(norm, w)
	return Assessment{
		EquipmentID:    r.EquipmentID,
		Timestamp:      r.Timestamp,
		RiskScore:      score,
		Level:          Classify(score),
		Reason:         Explain(norm, RawTriple(r), w),
		Temperature:    r.Temperature,
		Vibration:      r.Vibration,
		LoadPercentage: r.LoadPercentage,
	}
}

// Pipeline scores readings, records significant transitions and pushes
// HIGH/CRITICAL assessments.
//
// Pipeline is safe for concurrent use. Calls for the same equipment id are
// serialized; calls for different ids run in parallel.
type Pipeline struct {
	weights     Weights
	equipment   EquipmentFinder
	history     AlertHistory
	publisher   Publisher
	readings    ReadingRecorder
	pushTimeout time.Duration
	locks       *keyedMutex
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPublisher sets the real-time notification sink. Without one,
// assessments are never pushed.
func WithPublisher(p Publisher) Option {
	return func(pl *Pipeline) { pl.publisher = p }
}

// WithReadingLog logs each reading before it is scored.
func WithReadingLog(l ReadingRecorder) Option {
	return func(pl *Pipeline) { pl.readings = l }
}

// WithPushTimeout bounds each publish attempt (default 5s).
func WithPushTimeout(d time.Duration) Option {
	return func(pl *Pipeline) {
		if d > 0 {
			pl.pushTimeout = d
		}
	}
}

// NewPipeline creates a Pipeline. weights are fixed for its lifetime.
func NewPipeline(weights Weights, equipment EquipmentFinder, history AlertHistory, opts ...Option) *Pipeline {
	p := &Pipeline{
		weights:     weights,
		equipment:   equipment,
		history:     history,
		pushTimeout: defaultPushTimeout,
		locks:       newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Weights returns the coefficients the pipeline scores with.
func (p *Pipeline) Weights() Weights { return p.weights }

// Process scores one validated reading, records an alert event when the
// debounce gate says so, and pushes HIGH/CRITICAL assessments.
//
// An error is returned only when the reading log or alert history cannot be
// read or written; a missing equipment entry or a failed push never fails the
// call.
func (p *Pipeline) Process(ctx context.Context, r types.SensorReading) (Assessment, error) {
	start := time.Now()
	defer func() { metrics.ProcessDuration.Observe(time.Since(start).Seconds()) }()

	unlock := p.locks.Lock(r.EquipmentID)
	defer unlock()

	var readingID string
	if p.readings != nil {
		logged, err := p.readings.SaveReading(ctx, r)
		if err != nil {
			metrics.ReadingsFailedTotal.Inc()
			return Assessment{}, fmt.Errorf("risk: log reading for %q: %w", r.EquipmentID, err)
		}
		readingID = logged.ID
	}

	name := UnknownEquipment
	if p.equipment != nil {
		if eq, ok := p.equipment.FindEquipment(ctx, r.EquipmentID); ok && eq.Name != "" {
			name = eq.Name
		}
	}

	a := Assess(r, p.weights)
	a.EquipmentName = name
	a.ReadingID = readingID

	slog.Debug("risk: reading scored",
		"equipment_id", a.EquipmentID,
		"score", a.RiskScore.StringFixed(scale),
		"level", a.Level,
		"reason", a.Reason,
	)

	last, found, err := p.history.LatestAlertEvent(ctx, r.EquipmentID)
	if err != nil {
		metrics.ReadingsFailedTotal.Inc()
		return Assessment{}, fmt.Errorf("risk: read latest alert event for %q: %w", r.EquipmentID, err)
	}
	previous := LevelNone
	if found {
		previous = last.Level
	}

	if ShouldRecord(a.Level, previous) {
		saved, err := p.history.SaveAlertEvent(ctx, AlertEvent{
			EquipmentID: a.EquipmentID,
			Timestamp:   a.Timestamp,
			RiskScore:   a.RiskScore,
			Level:       a.Level,
			Reason:      a.Reason,
		})
		if err != nil {
			metrics.ReadingsFailedTotal.Inc()
			return Assessment{}, fmt.Errorf("risk: save alert event for %q: %w", r.EquipmentID, err)
		}
		a.EventID = saved.ID
		metrics.AlertEventsTotal.WithLabelValues("recorded").Inc()
		slog.Info("risk: alert event recorded",
			"equipment_id", a.EquipmentID,
			"event_id", saved.ID,
			"level", a.Level,
			"previous", previous,
		)
	} else {
		metrics.AlertEventsTotal.WithLabelValues("suppressed").Inc()
	}

	if a.Level.AlertWorthy() {
		p.push(ctx, a)
	}

	metrics.ReadingsProcessedTotal.WithLabelValues(a.Level.String()).Inc()
	return a, nil
}

// push publishes a on TopicAlerts. Failures, panics included, are logged
// and dropped.
func (p *Pipeline) push(ctx context.Context, a Assessment) {
	if p.publisher == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.WithLabelValues("publisher").Inc()
			slog.Error("risk: alert push panicked",
				"equipment_id", a.EquipmentID,
				"level", a.Level,
				"panic", r,
			)
		}
	}()
	// The event is already durable; a caller going away must not skip the push.
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.pushTimeout)
	defer cancel()

	if err := p.publisher.Publish(pushCtx, TopicAlerts, a); err != nil {
		slog.Error("risk: alert push failed",
			"equipment_id", a.EquipmentID,
			"level", a.Level,
			"err", err,
		)
		return
	}
	slog.Info("risk: alert pushed",
		"equipment_id", a.EquipmentID,
		"equipment", a.EquipmentName,
		"level", a.Level,
	)
}
