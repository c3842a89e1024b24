package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/riskwatch/riskwatch/server/internal/risk"
)

// Default page sizes for the listing queries.
const (
	DefaultHistoryLimit = 100
	DefaultRecentLimit  = 50
)

// ErrClosed is returned by every method after Close.
var ErrClosed = errors.New("store: closed")

// Store is the full alert history and reading log contract served by both
// backends.
type Store interface {
	risk.AlertHistory
	ReadingLog

	// History returns up to limit events for one equipment, newest first.
	// limit <= 0 means DefaultHistoryLimit.
	History(ctx context.Context, equipmentID string, limit int) ([]risk.AlertEvent, error)

	// Recent returns up to limit events across all equipment whose level is
	// in levels, newest first. An empty levels means risk.AlertLevels;
	// limit <= 0 means DefaultRecentLimit.
	Recent(ctx context.Context, levels []risk.Level, limit int) ([]risk.AlertEvent, error)

	Close() error
}

// Options selects and configures a backend.
type Options struct {
	// Backend is memory (default) or sqlite.
	Backend string
	// Path is the SQLite database file.
	Path string
}

// Open returns the backend named by opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(ctx, opts.Path)
	default:
		return nil, fmt.Errorf("store: unknown backend %q: want memory|sqlite", opts.Backend)
	}
}

func historyLimit(n int) int {
	if n <= 0 {
		return DefaultHistoryLimit
	}
	return n
}

func recentLimit(n int) int {
	if n <= 0 {
		return DefaultRecentLimit
	}
	return n
}

func levelSet(levels []risk.Level) map[risk.Level]bool {
	if len(levels) == 0 {
		levels = risk.AlertLevels
	}
	set := make(map[risk.Level]bool, len(levels))
	for _, l := range levels {
		set[l] = true
	}
	return set
}

var (
	_ Store                = (*Memory)(nil)
	_ Store                = (*SQLite)(nil)
	_ risk.ReadingRecorder = (*Memory)(nil)
)
