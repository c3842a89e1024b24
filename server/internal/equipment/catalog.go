package equipment

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/riskwatch/riskwatch/server/internal/risk"
)

type file struct {
	Equipment []risk.Equipment `yaml:"equipment"`
}

// Catalog is a thread-safe, replaceable set of equipment entries.
type Catalog struct {
	mu    sync.RWMutex
	items map[string]risk.Equipment
}

// New builds a Catalog from items. Duplicate or empty ids are rejected.
func New(items []risk.Equipment) (*Catalog, error) {
	m, err := index(items)
	if err != nil {
		return nil, err
	}
	return &Catalog{items: m}, nil
}

// Load reads the catalog file at path. An empty path yields an empty catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return &Catalog{items: map[string]risk.Equipment{}}, nil
	}
	items, err := parseFile(path)
	if err != nil {
		return nil, err
	}
	return New(items)
}

func parseFile(path string) ([]risk.Equipment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("equipment: read %q: %w", path, err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("equipment: parse yaml: %w", err)
	}
	return f.Equipment, nil
}

func index(items []risk.Equipment) (map[string]risk.Equipment, error) {
	m := make(map[string]risk.Equipment, len(items))
	for i, eq := range items {
		eq.ID = strings.TrimSpace(eq.ID)
		if eq.ID == "" {
			return nil, fmt.Errorf("equipment: entry %d: id is required", i)
		}
		if _, dup := m[eq.ID]; dup {
			return nil, fmt.Errorf("equipment: duplicate id %q", eq.ID)
		}
		m[eq.ID] = eq
	}
	return m, nil
}

// Replace swaps the catalog contents atomically.
func (c *Catalog) Replace(items []risk.Equipment) error {
	m, err := index(items)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.items = m
	c.mu.Unlock()
	return nil
}

// FindEquipment implements risk.EquipmentFinder.
func (c *Catalog) FindEquipment(_ context.Context, id string) (risk.Equipment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	eq, ok := c.items[id]
	return eq, ok
}

// List returns every entry sorted by id.
func (c *Catalog) List() []risk.Equipment {
	c.mu.RLock()
	out := make([]risk.Equipment, 0, len(c.items))
	for _, eq := range c.items {
		out = append(out, eq)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
