package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/riskwatch/riskwatch/server/internal/risk"
)

const defaultTimeout = 10 * time.Second

// Target is one webhook destination.
type Target struct {
	// Type is one of: slack | teams | http.
	Type string
	URL  string
}

// Notifier implements risk.Publisher by posting to webhook targets.
//
// Notifier is safe for concurrent use.
type Notifier struct {
	targets []Target
	client  *http.Client
	wg      sync.WaitGroup
}

// New creates a Notifier. Targets with an empty URL or unknown type are
// skipped with a warning.
func New(targets []Target) *Notifier {
	valid := make([]Target, 0, len(targets))
	for _, t := range targets {
		switch {
		case t.URL == "":
			slog.Warn("alerts: webhook has no URL, skipping", "type", t.Type)
		case t.Type != "slack" && t.Type != "teams" && t.Type != "http":
			slog.Warn("alerts: unknown webhook type, skipping", "type", t.Type)
		default:
			valid = append(valid, t)
		}
	}
	return &Notifier{
		targets: valid,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// Len returns the number of usable targets.
func (n *Notifier) Len() int { return len(n.targets) }

// Publish schedules delivery of payload to every target and returns
// immediately.
func (n *Notifier) Publish(_ context.Context, topic string, payload interface{}) error {
	if len(n.targets) == 0 {
		return nil
	}
	msg := newMessage(topic, payload)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()
		n.deliver(ctx, msg)
	}()
	return nil
}

// Close waits for in-flight deliveries to finish.
func (n *Notifier) Close() error {
	n.wg.Wait()
	return nil
}

// message is the rendered form of one published payload.
type message struct {
	topic   string
	title   string
	text    string
	level   risk.Level
	payload interface{}
}

func newMessage(topic string, payload interface{}) message {
	m := message{topic: topic, payload: payload, title: "RiskWatch " + topic}
	if a, ok := payload.(risk.Assessment); ok {
		m.level = a.Level
		m.title = fmt.Sprintf("RiskWatch: %s risk on %s", a.Level, a.EquipmentName)
		m.text = fmt.Sprintf("%s %s (%s) scored %s. %s",
			levelLabel(a.Level), a.EquipmentName, a.EquipmentID,
			a.RiskScore.StringFixed(2), a.Reason)
	} else {
		m.text = fmt.Sprintf("RiskWatch %s notification", topic)
	}
	return m
}

func levelLabel(l risk.Level) string {
	return "[" + l.String() + "]"
}

func levelColor(l risk.Level) string {
	switch l {
	case risk.LevelCritical:
		return "FF4F6A"
	case risk.LevelHigh:
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
