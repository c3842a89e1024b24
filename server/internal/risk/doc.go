// Package risk turns equipment sensor readings into risk assessments and
// decides which of them become durable alert events.
//
// score.go holds the pure functions, all on fixed-point decimals with
// half-up rounding to two places:
//
//	Normalize  value -> 0..100 against a fixed per-metric range
//	Score      weighted sum of the three normalized values
//	Classify   score -> LOW | MEDIUM | HIGH | CRITICAL (lower bounds 40, 65, 85)
//
// explain.go names the metric with the largest weighted contribution
// (ties: Temperature > Vibration > Load).
//
// gate.go is the debounce rule: every non-LOW level is recorded, LOW is
// recorded only when it follows a non-LOW event.
//
// pipeline.go composes the above with the collaborators it needs
// (equipment lookup, alert history, real-time publisher). The previous level
// is read from alert history on every call; readings for the same equipment
// are processed one at a time.
package risk
