package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/riskwatch/riskwatch/agent/internal/config"
	"github.com/riskwatch/riskwatch/agent/internal/scraper"
	"github.com/riskwatch/riskwatch/agent/internal/shipper"
)

// source pairs a configured exporter with its scraper.
type source struct {
	cfg config.Source
	s   scraper.Scraper
}

// sourceSet is the live list of sources, swapped on config reload.
type sourceSet struct {
	mu      sync.RWMutex
	sources []source
}

func (ss *sourceSet) set(srcs []config.Source) {
	built := buildSources(srcs)
	ss.mu.Lock()
	ss.sources = built
	ss.mu.Unlock()
}

func (ss *sourceSet) snapshot() []source {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.sources
}

func buildSources(srcs []config.Source) []source {
	out := make([]source, 0, len(srcs))
	for _, src := range srcs {
		s, err := scraper.New(src)
		if err != nil {
			slog.Error("skipping source, could not build scraper", "source", src.ID, "err", err)
			continue
		}
		out = append(out, source{cfg: src, s: s})
		slog.Info("registered source", "id", src.ID, "endpoint", src.Endpoint)
	}
	if len(out) == 0 {
		slog.Warn("no sources configured, agent will idle")
	}
	return out
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Agent.LogLevel)})))
	slog.Info("riskwatch-agent starting",
		"config", *configPath,
		"server_endpoint", cfg.Agent.ServerEndpoint,
		"sources", len(cfg.Agent.Sources),
		"scrape_interval", cfg.Agent.ScrapeInterval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var sources sourceSet
	sources.set(cfg.Agent.Sources)

	// Source changes apply on the next tick. Endpoint, interval and buffer
	// changes need a restart.
	go func() {
		if err := config.Watch(ctx, *configPath, cfg, func(updated *config.Config) {
			if updated.Agent.ServerEndpoint != cfg.Agent.ServerEndpoint ||
				updated.Agent.ScrapeInterval != cfg.Agent.ScrapeInterval ||
				updated.Agent.BufferSize != cfg.Agent.BufferSize {
				slog.Warn("config: server, interval or buffer changes require a restart")
			}
			sources.set(updated.Agent.Sources)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	ship := shipper.New(cfg.Agent)
	go ship.Run(ctx)

	scrapeAll := func() {
		for _, src := range sources.snapshot() {
			readings, err := src.s.Scrape(ctx)
			if err != nil {
				slog.Warn("scrape error", "source", src.cfg.ID, "err", err)
				continue
			}
			for _, r := range readings {
				ship.Ship(r)
			}
			slog.Debug("scraped source", "source", src.cfg.ID, "readings", len(readings), "queued", ship.Len())
		}
	}

	go func() {
		scrapeAll()
		ticker := time.NewTicker(cfg.Agent.ScrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				scrapeAll()
			}
		}
	}()

	<-ctx.Done()
	slog.Info("riskwatch-agent shutting down", "unsent", ship.Len())
}
