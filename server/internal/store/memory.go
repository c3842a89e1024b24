package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/riskwatch/riskwatch/pkg/types"
	"github.com/riskwatch/riskwatch/server/internal/risk"
)

// entry is an event together with its insertion sequence, which breaks ties
// between equal timestamps.
type entry struct {
	seq   uint64
	event risk.AlertEvent
}

type readingEntry struct {
	seq     uint64
	reading types.LoggedReading
}

// Memory is a thread-safe in-process alert history and reading log, keyed
// by equipment id. Nothing is ever modified or removed.
type Memory struct {
	mu       sync.RWMutex
	data     map[string][]entry
	readings map[string][]readingEntry
	seq      uint64
	closed   bool
	newID    func() string // injectable for deterministic tests
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		data:     make(map[string][]entry),
		readings: make(map[string][]readingEntry),
		newID:    uuid.NewString,
	}
}

// SaveAlertEvent appends ev under ev.EquipmentID and returns it with a fresh id.
func (m *Memory) SaveAlertEvent(_ context.Context, ev risk.AlertEvent) (risk.AlertEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return risk.AlertEvent{}, ErrClosed
	}
	m.seq++
	ev.ID = m.newID()
	m.data[ev.EquipmentID] = append(m.data[ev.EquipmentID], entry{seq: m.seq, event: ev})
	return ev, nil
}

// LatestAlertEvent returns the event saved last for the equipment, whatever
// its reading timestamp. Gating compares against this event, so a reading
// that arrives late cannot rewind the comparison point.
func (m *Memory) LatestAlertEvent(_ context.Context, equipmentID string) (risk.AlertEvent, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return risk.AlertEvent{}, false, ErrClosed
	}
	entries := m.data[equipmentID]
	if len(entries) == 0 {
		return risk.AlertEvent{}, false, nil
	}
	// Appends happen under the write lock, so the tail has the highest seq.
	return entries[len(entries)-1].event, true, nil
}

// History returns up to limit events for equipmentID, newest first.
func (m *Memory) History(_ context.Context, equipmentID string, limit int) ([]risk.AlertEvent, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, ErrClosed
	}
	entries := append([]entry(nil), m.data[equipmentID]...)
	m.mu.RUnlock()

	return newestFirst(entries, historyLimit(limit)), nil
}

// Recent returns up to limit events of the given levels across all equipment,
// newest first.
func (m *Memory) Recent(_ context.Context, levels []risk.Level, limit int) ([]risk.AlertEvent, error) {
	want := levelSet(levels)

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, ErrClosed
	}
	var entries []entry
	for _, es := range m.data {
		for _, e := range es {
			if want[e.event.Level] {
				entries = append(entries, e)
			}
		}
	}
	m.mu.RUnlock()

	return newestFirst(entries, recentLimit(limit)), nil
}

// SaveReading appends r under r.EquipmentID and returns it with a fresh id.
func (m *Memory) SaveReading(_ context.Context, r types.SensorReading) (types.LoggedReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return types.LoggedReading{}, ErrClosed
	}
	m.seq++
	lr := types.LoggedReading{ID: m.newID(), SensorReading: r}
	m.readings[r.EquipmentID] = append(m.readings[r.EquipmentID], readingEntry{seq: m.seq, reading: lr})
	return lr, nil
}

// Readings returns the readings of equipmentID selected by q.
func (m *Memory) Readings(_ context.Context, equipmentID string, q ReadingQuery) ([]types.LoggedReading, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, ErrClosed
	}
	var entries []readingEntry
	for _, e := range m.readings[equipmentID] {
		if q.contains(e.reading.Timestamp) {
			entries = append(entries, e)
		}
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if q.Ascending {
			return laterReading(entries[j], entries[i])
		}
		return laterReading(entries[i], entries[j])
	})
	if len(entries) > q.limit() {
		entries = entries[:q.limit()]
	}
	out := make([]types.LoggedReading, len(entries))
	for i, e := range entries {
		out[i] = e.reading
	}
	return out, nil
}

// LatestReading returns the reading of equipmentID with the greatest
// timestamp.
func (m *Memory) LatestReading(_ context.Context, equipmentID string) (types.LoggedReading, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return types.LoggedReading{}, false, ErrClosed
	}
	entries := m.readings[equipmentID]
	if len(entries) == 0 {
		return types.LoggedReading{}, false, nil
	}
	best := entries[0]
	for _, e := range entries[1:] {
		if laterReading(e, best) {
			best = e
		}
	}
	return best.reading, true, nil
}

// Count returns the total number of events held.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, es := range m.data {
		n += len(es)
	}
	return n
}

// Close marks the store closed. Further calls return ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func newer(a, b entry) bool {
	if a.event.Timestamp.Equal(b.event.Timestamp) {
		return a.seq > b.seq
	}
	return a.event.Timestamp.After(b.event.Timestamp)
}

func laterReading(a, b readingEntry) bool {
	if a.reading.Timestamp.Equal(b.reading.Timestamp) {
		return a.seq > b.seq
	}
	return a.reading.Timestamp.After(b.reading.Timestamp)
}

func newestFirst(entries []entry, limit int) []risk.AlertEvent {
	sort.Slice(entries, func(i, j int) bool { return newer(entries[i], entries[j]) })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]risk.AlertEvent, len(entries))
	for i, e := range entries {
		out[i] = e.event
	}
	return out
}
