package risk

import (
	"fmt"
	"strings"
)

// Level is an ordered risk severity. LevelNone stands for "no alert event
// recorded yet" and is never produced by Classify.
type Level int

const (
	LevelNone Level = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelCritical
)

var levelNames = [...]string{
	LevelNone:     "NONE",
	LevelLow:      "LOW",
	LevelMedium:   "MEDIUM",
	LevelHigh:     "HIGH",
	LevelCritical: "CRITICAL",
}

func (l Level) String() string {
	if l < LevelNone || l > LevelCritical {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel accepts a level name in any case. NONE is rejected: it is not
// a level an event can carry.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return LevelLow, nil
	case "MEDIUM":
		return LevelMedium, nil
	case "HIGH":
		return LevelHigh, nil
	case "CRITICAL":
		return LevelCritical, nil
	}
	return LevelNone, fmt.Errorf("risk: unknown level %q: want LOW|MEDIUM|HIGH|CRITICAL", s)
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	if strings.EqualFold(string(b), "NONE") {
		*l = LevelNone
		return nil
	}
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// AlertWorthy reports whether the level triggers a real-time notification.
func (l Level) AlertWorthy() bool {
	return l >= LevelHigh
}

// AlertLevels is the default filter for alert listings: everything above LOW.
var AlertLevels = []Level{LevelMedium, LevelHigh, LevelCritical}

// Levels lists every level an alert event can carry, lowest first.
var Levels = []Level{LevelLow, LevelMedium, LevelHigh, LevelCritical}
