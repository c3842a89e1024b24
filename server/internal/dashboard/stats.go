// Package dashboard computes the fleet summary shown on the dashboard and
// pushed to WebSocket clients.
package dashboard

import (
	"context"
	"fmt"

	"github.com/riskwatch/riskwatch/server/internal/risk"
)

// Stats counts catalog equipment by the level of its most recent alert event.
// Equipment without any event is counted in Total only.
type Stats struct {
	TotalEquipment int `json:"total_equipment"`
	CriticalCount  int `json:"critical_equipment"`
	HighCount      int `json:"high_risk_equipment"`
	MediumCount    int `json:"medium_risk_equipment"`
	LowCount       int `json:"low_risk_equipment"`
	WithoutHistory int `json:"no_history_equipment"`
}

// Lister enumerates the equipment catalog.
type Lister interface {
	List() []risk.Equipment
}

// LatestFinder returns the most recent alert event per equipment.
type LatestFinder interface {
	LatestAlertEvent(ctx context.Context, equipmentID string) (risk.AlertEvent, bool, error)
}

// Source computes Stats on demand.
type Source struct {
	catalog Lister
	history LatestFinder
}

// NewSource creates a Source over catalog and history.
func NewSource(catalog Lister, history LatestFinder) *Source {
	return &Source{catalog: catalog, history: history}
}

// Stats computes the current summary.
func (s *Source) Stats(ctx context.Context) (Stats, error) {
	items := s.catalog.List()
	st := Stats{TotalEquipment: len(items)}
	for _, eq := range items {
		ev, ok, err := s.history.LatestAlertEvent(ctx, eq.ID)
		if err != nil {
			return Stats{}, fmt.Errorf("dashboard: latest event for %q: %w", eq.ID, err)
		}
		if !ok {
			st.WithoutHistory++
			continue
		}
		switch ev.Level {
		case risk.LevelCritical:
			st.CriticalCount++
		case risk.LevelHigh:
			st.HighCount++
		case risk.LevelMedium:
			st.MediumCount++
		case risk.LevelLow:
			st.LowCount++
		}
	}
	return st, nil
}
