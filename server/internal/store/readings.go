package store

import (
	"context"
	"time"

	"github.com/riskwatch/riskwatch/pkg/types"
)

// DefaultReadingLimit is the page size of Readings when none is given.
const DefaultReadingLimit = 100

// ReadingLog is the append-only log of accepted sensor readings.
type ReadingLog interface {
	// SaveReading appends r and returns it with a fresh id.
	SaveReading(ctx context.Context, r types.SensorReading) (types.LoggedReading, error)

	// Readings returns up to q.Limit readings for one equipment, ordered by
	// reading timestamp (newest first unless q.Ascending).
	Readings(ctx context.Context, equipmentID string, q ReadingQuery) ([]types.LoggedReading, error)

	// LatestReading returns the reading with the greatest timestamp, or false
	// when the equipment has none. Equal timestamps go to the one saved last.
	LatestReading(ctx context.Context, equipmentID string) (types.LoggedReading, bool, error)
}

// ReadingQuery narrows a Readings call. From and To are inclusive; a zero
// value leaves that end open.
type ReadingQuery struct {
	Limit     int
	Ascending bool
	From      time.Time
	To        time.Time
}

func (q ReadingQuery) limit() int {
	if q.Limit <= 0 {
		return DefaultReadingLimit
	}
	return q.Limit
}

func (q ReadingQuery) contains(ts time.Time) bool {
	if !q.From.IsZero() && ts.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && ts.After(q.To) {
		return false
	}
	return true
}
