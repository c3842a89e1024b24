package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Metric identifies one of the three scored sensor channels.
type Metric int

const (
	Temperature Metric = iota
	Vibration
	Load
)

// metricPriority is the enumeration order used for attribution. Earlier
// entries win ties.
var metricPriority = [...]Metric{Temperature, Vibration, Load}

func (m Metric) String() string {
	switch m {
	case Temperature:
		return "Temperature"
	case Vibration:
		return "Vibration"
	case Load:
		return "Load"
	}
	return fmt.Sprintf("Metric(%d)", int(m))
}

// Unit is the display suffix appended to a raw value. Symbol units attach
// directly to the number; mm/s carries its own leading space.
func (m Metric) Unit() string {
	switch m {
	case Temperature:
		return "°C"
	case Vibration:
		return " mm/s"
	case Load:
		return "%"
	}
	return ""
}

// Contribution is norm * weight for m.
func Contribution(norm Triple, w Weights, m Metric) decimal.Decimal {
	return norm.Get(m).Mul(w.Get(m))
}

// Dominant returns the metric with the strictly largest weighted
// contribution. Equal contributions resolve to the earlier metric in
// Temperature, Vibration, Load order.
func Dominant(norm Triple, w Weights) Metric {
	best := metricPriority[0]
	bestValue := Contribution(norm, w, best)
	for _, m := range metricPriority[1:] {
		if c := Contribution(norm, w, m); c.GreaterThan(bestValue) {
			best, bestValue = m, c
		}
	}
	return best
}

// Explain names the dominant metric with its raw reading, e.g.
// "Primary risk factor: Vibration (45.0 mm/s)".
func Explain(norm, raw Triple, w Weights) string {
	m := Dominant(norm, w)
	return fmt.Sprintf("Primary risk factor: %s (%s%s)", m, raw.Get(m).StringFixed(1), m.Unit())
}
