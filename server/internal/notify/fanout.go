// Package notify combines several real-time sinks behind one risk.Publisher.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/riskwatch/riskwatch/server/internal/risk"
)

// Sink is a named publisher.
type Sink struct {
	Name      string
	Publisher risk.Publisher
}

// Fanout publishes every payload to all sinks in order. A failing sink never
// stops the others; their errors are joined.
type Fanout struct {
	sinks []Sink
}

// NewFanout creates a Fanout over sinks. Nil publishers are ignored.
func NewFanout(sinks ...Sink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s.Publisher != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Publish implements risk.Publisher.
func (f *Fanout) Publish(ctx context.Context, topic string, payload interface{}) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publisher.Publish(ctx, topic, payload); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Names lists the configured sinks.
func (f *Fanout) Names() []string {
	out := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		out[i] = s.Name
	}
	return out
}
