package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"

	"github.com/riskwatch/riskwatch/agent/internal/config"
	"github.com/riskwatch/riskwatch/pkg/types"
)

// Scraper polls one exporter and returns the readings it currently exposes.
type Scraper interface {
	Scrape(ctx context.Context) ([]types.SensorReading, error)
}

// New returns a Scraper for src. It builds the HTTP client once and reuses it
// across scrape calls.
func New(src config.Source) (Scraper, error) {
	client, err := buildHTTPClient(src)
	if err != nil {
		return nil, fmt.Errorf("scraper %q: build http client: %w", src.ID, err)
	}
	return &promScraper{src: src, client: client, now: time.Now}, nil
}

type promScraper struct {
	src    config.Source
	client *http.Client
	now    func() time.Time
}

// partial collects the three channels for one equipment id.
type partial struct {
	ts              time.Time
	temp, vib, load *decimal.Decimal
}

// Scrape fetches the exporter and assembles one reading per equipment id that
// reports all three gauges. Values are rounded to two decimal places. The
// reading carries the newest exposition timestamp among its samples, or the
// scrape time when the exporter sends none. Readings outside the accepted
// input ranges are dropped with a warning. Results are ordered by equipment id.
func (s *promScraper) Scrape(ctx context.Context) ([]types.SensorReading, error) {
	mfs, err := fetchMetrics(ctx, s.client, s.src.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("scrape %q: %w", s.src.ID, err)
	}

	now := s.now().UTC()
	byID := make(map[string]*partial)
	collect := func(name string, set func(p *partial, v decimal.Decimal)) {
		for _, m := range mfs[name].GetMetric() {
			id := labelValue(m, s.src.EquipmentLabel)
			if id == "" {
				continue
			}
			v, ok := sampleValue(m)
			if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			p := byID[id]
			if p == nil {
				p = &partial{}
				byID[id] = p
			}
			if ts := sampleTime(m); ts.After(p.ts) {
				p.ts = ts
			}
			set(p, decimal.NewFromFloat(v).Round(2))
		}
	}
	collect(s.src.Metrics.Temperature, func(p *partial, v decimal.Decimal) { p.temp = &v })
	collect(s.src.Metrics.Vibration, func(p *partial, v decimal.Decimal) { p.vib = &v })
	collect(s.src.Metrics.Load, func(p *partial, v decimal.Decimal) { p.load = &v })

	out := make([]types.SensorReading, 0, len(byID))
	for id, p := range byID {
		if p.temp == nil || p.vib == nil || p.load == nil {
			slog.Debug("scraper: incomplete equipment metrics, skipping",
				"source", s.src.ID, "equipment_id", id)
			continue
		}
		in := types.ReadingInput{
			EquipmentID:    id,
			Timestamp:      &p.ts,
			Temperature:    p.temp,
			Vibration:      p.vib,
			LoadPercentage: p.load,
		}
		r, err := in.Reading(now)
		if err != nil {
			slog.Warn("scraper: reading out of range, skipping",
				"source", s.src.ID, "equipment_id", id, "err", err)
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EquipmentID < out[j].EquipmentID })
	return out, nil
}

// sampleTime returns the exposition timestamp of m, or the zero time.
func sampleTime(m *dto.Metric) time.Time {
	if m.TimestampMs == nil {
		return time.Time{}
	}
	return time.UnixMilli(m.GetTimestampMs()).UTC()
}
