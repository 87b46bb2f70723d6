package severity

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknown = errors.New("unknown severity")

// Level classifies hazard urgency. Safe is a distinguished non-alerting
// classification, not the bottom of the urgency scale.
type Level string

const (
	Low      Level = "low"
	Medium   Level = "medium"
	High     Level = "high"
	Critical Level = "critical"
	Safe     Level = "safe"
)

// All returns every level, most urgent first.
func All() []Level {
	return []Level{Critical, High, Medium, Low, Safe}
}

// Alerting returns the levels that produce audio.
func Alerting() []Level {
	return []Level{Critical, High, Medium, Low}
}

func (l Level) Valid() bool {
	switch l {
	case Low, Medium, High, Critical, Safe:
		return true
	}
	return false
}

func (l Level) IsAlerting() bool {
	return l.Valid() && l != Safe
}

// ShowsBanner reports whether the persistent banner channel fires.
func (l Level) ShowsBanner() bool {
	return l == High || l == Critical
}

func (l Level) String() string { return string(l) }

var aliases = map[string]Level{
	"moderate": Medium,
	"med":      Medium,
	"severe":   High,
	"none":     Safe,
	"ok":       Safe,
}

func Parse(s string) (Level, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if l := Level(v); l.Valid() {
		return l, nil
	}
	if l, ok := aliases[v]; ok {
		return l, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknown, s)
}
