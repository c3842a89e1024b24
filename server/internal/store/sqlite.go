package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/riskwatch/riskwatch/pkg/types"
	"github.com/riskwatch/riskwatch/server/internal/risk"
)

const schema = `
CREATE TABLE IF NOT EXISTS alert_events (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	id           TEXT    NOT NULL UNIQUE,
	equipment_id TEXT    NOT NULL,
	timestamp    INTEGER NOT NULL,
	risk_score   TEXT    NOT NULL,
	risk_level   TEXT    NOT NULL,
	reason       TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alert_events_equipment_ts
	ON alert_events (equipment_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_alert_events_ts
	ON alert_events (timestamp);
CREATE TABLE IF NOT EXISTS sensor_readings (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	id              TEXT    NOT NULL UNIQUE,
	equipment_id    TEXT    NOT NULL,
	timestamp       INTEGER NOT NULL,
	temperature     TEXT    NOT NULL,
	vibration       TEXT    NOT NULL,
	load_percentage TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sensor_readings_equipment_ts
	ON sensor_readings (equipment_id, timestamp);
`

const selectColumns = `SELECT id, equipment_id, timestamp, risk_score, risk_level, reason FROM alert_events`

const selectReadingColumns = `SELECT id, equipment_id, timestamp, temperature, vibration, load_percentage FROM sensor_readings`

// SQLite is an alert history and reading log persisted in a SQLite database
// file.
// Timestamps are stored as UTC unix nanoseconds and scores as fixed
// two-place decimal text, so both round-trip exactly.
type SQLite struct {
	db    *sql.DB
	newID func() string
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("store: sqlite path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %q: %w", path, err)
	}
	// One writer keeps ":memory:" databases on a single connection and
	// serializes inserts.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	slog.Info("store: sqlite ready", "path", path)
	return &SQLite{db: db, newID: uuid.NewString}, nil
}

// SaveAlertEvent inserts ev and returns it with a fresh id.
func (s *SQLite) SaveAlertEvent(ctx context.Context, ev risk.AlertEvent) (risk.AlertEvent, error) {
	ev.ID = s.newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_events (id, equipment_id, timestamp, risk_score, risk_level, reason)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.EquipmentID, ev.Timestamp.UTC().UnixNano(),
		ev.RiskScore.StringFixed(2), ev.Level.String(), ev.Reason,
	)
	if err != nil {
		return risk.AlertEvent{}, fmt.Errorf("store: insert alert event: %w", err)
	}
	return ev, nil
}

// LatestAlertEvent returns the event inserted last for equipmentID.
func (s *SQLite) LatestAlertEvent(ctx context.Context, equipmentID string) (risk.AlertEvent, bool, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+` WHERE equipment_id = ? ORDER BY seq DESC LIMIT 1`,
		equipmentID,
	)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return risk.AlertEvent{}, false, nil
	}
	if err != nil {
		return risk.AlertEvent{}, false, fmt.Errorf("store: latest alert event: %w", err)
	}
	return ev, true, nil
}

// History returns up to limit events for equipmentID, newest first.
func (s *SQLite) History(ctx context.Context, equipmentID string, limit int) ([]risk.AlertEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE equipment_id = ? ORDER BY timestamp DESC, seq DESC LIMIT ?`,
		equipmentID, historyLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("store: query history: %w", err)
	}
	return collect(rows)
}

// Recent returns up to limit events of the given levels, newest first.
func (s *SQLite) Recent(ctx context.Context, levels []risk.Level, limit int) ([]risk.AlertEvent, error) {
	if len(levels) == 0 {
		levels = risk.AlertLevels
	}
	args := make([]interface{}, 0, len(levels)+1)
	marks := make([]string, len(levels))
	for i, l := range levels {
		marks[i] = "?"
		args = append(args, l.String())
	}
	args = append(args, recentLimit(limit))

	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE risk_level IN (`+strings.Join(marks, ",")+`) ORDER BY timestamp DESC, seq DESC LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query recent: %w", err)
	}
	return collect(rows)
}

// SaveReading inserts r and returns it with a fresh id.
func (s *SQLite) SaveReading(ctx context.Context, r types.SensorReading) (types.LoggedReading, error) {
	lr := types.LoggedReading{ID: s.newID(), SensorReading: r}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sensor_readings (id, equipment_id, timestamp, temperature, vibration, load_percentage)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		lr.ID, r.EquipmentID, r.Timestamp.UTC().UnixNano(),
		r.Temperature.String(), r.Vibration.String(), r.LoadPercentage.String(),
	)
	if err != nil {
		return types.LoggedReading{}, fmt.Errorf("store: insert reading: %w", err)
	}
	return lr, nil
}

// Readings returns the readings of equipmentID selected by q.
func (s *SQLite) Readings(ctx context.Context, equipmentID string, q ReadingQuery) ([]types.LoggedReading, error) {
	where := []string{"equipment_id = ?"}
	args := []interface{}{equipmentID}
	if !q.From.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, q.From.UTC().UnixNano())
	}
	if !q.To.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, q.To.UTC().UnixNano())
	}
	order := "timestamp DESC, seq DESC"
	if q.Ascending {
		order = "timestamp ASC, seq ASC"
	}
	args = append(args, q.limit())

	rows, err := s.db.QueryContext(ctx,
		selectReadingColumns+` WHERE `+strings.Join(where, " AND ")+` ORDER BY `+order+` LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query readings: %w", err)
	}
	defer rows.Close()
	out := []types.LoggedReading{}
	for rows.Next() {
		lr, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan reading: %w", err)
		}
		out = append(out, lr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate readings: %w", err)
	}
	return out, nil
}

// LatestReading returns the reading of equipmentID with the greatest
// timestamp.
func (s *SQLite) LatestReading(ctx context.Context, equipmentID string) (types.LoggedReading, bool, error) {
	row := s.db.QueryRowContext(ctx,
		selectReadingColumns+` WHERE equipment_id = ? ORDER BY timestamp DESC, seq DESC LIMIT 1`,
		equipmentID,
	)
	lr, err := scanReading(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.LoggedReading{}, false, nil
	}
	if err != nil {
		return types.LoggedReading{}, false, fmt.Errorf("store: latest reading: %w", err)
	}
	return lr, true, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(sc scanner) (risk.AlertEvent, error) {
	var (
		ev    risk.AlertEvent
		ts    int64
		score string
		level string
	)
	if err := sc.Scan(&ev.ID, &ev.EquipmentID, &ts, &score, &level, &ev.Reason); err != nil {
		return risk.AlertEvent{}, err
	}
	d, err := decimal.NewFromString(score)
	if err != nil {
		return risk.AlertEvent{}, fmt.Errorf("risk_score %q: %w", score, err)
	}
	l, err := risk.ParseLevel(level)
	if err != nil {
		return risk.AlertEvent{}, err
	}
	ev.Timestamp = time.Unix(0, ts).UTC()
	ev.RiskScore = d
	ev.Level = l
	return ev, nil
}

func scanReading(sc scanner) (types.LoggedReading, error) {
	var (
		lr              types.LoggedReading
		ts              int64
		temp, vib, load string
	)
	if err := sc.Scan(&lr.ID, &lr.EquipmentID, &ts, &temp, &vib, &load); err != nil {
		return types.LoggedReading{}, err
	}
	var err error
	if lr.Temperature, err = decimal.NewFromString(temp); err != nil {
		return types.LoggedReading{}, fmt.Errorf("temperature %q: %w", temp, err)
	}
	if lr.Vibration, err = decimal.NewFromString(vib); err != nil {
		return types.LoggedReading{}, fmt.Errorf("vibration %q: %w", vib, err)
	}
	if lr.LoadPercentage, err = decimal.NewFromString(load); err != nil {
		return types.LoggedReading{}, fmt.Errorf("load_percentage %q: %w", load, err)
	}
	lr.Timestamp = time.Unix(0, ts).UTC()
	return lr, nil
}

func collect(rows *sql.Rows) ([]risk.AlertEvent, error) {
	defer rows.Close()
	out := []risk.AlertEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan alert event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate alert events: %w", err)
	}
	return out, nil
}
