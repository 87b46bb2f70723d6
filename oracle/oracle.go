// Package oracle talks to the external vision-analysis service and turns
// its structured tool calls into verdicts.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"safewatch/severity"
)

var (
	// ErrUnavailable covers network, auth and HTTP-level failures.
	ErrUnavailable = errors.New("oracle unavailable")
	// ErrMalformedVerdict means the response matched neither tool shape.
	ErrMalformedVerdict = errors.New("malformed verdict")
)

// Tool names offered to the model.
const (
	ToolViolation = "report_violation"
	ToolSafe      = "report_safe_status"
)

// Verdict is one structured answer. Reasoning is the raw, unsplit text.
type Verdict struct {
	Safe      bool
	Severity  severity.Level
	Message   string
	Location  string
	Reasoning string
	Metrics   *NetworkMetrics
}

type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, frame []byte) (*Verdict, error)
}

type NetworkMetrics struct {
	DNS        time.Duration
	ConnWait   time.Duration
	TCP        time.Duration
	TLS        time.Duration
	ReqHeaders time.Duration
	ReqBody    time.Duration
	TTFB       time.Duration
	Download   time.Duration
	Total      time.Duration
	ConnReused bool
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

type toolArgs struct {
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Location  string    `json:"location"`
	Reasoning reasoning `json:"reasoning_steps"`
}

// reasoning accepts either a string or a list of strings. Lists are
// rendered back into a numbered string so both shapes split the same way.
type reasoning string

func (r *reasoning) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = reasoning(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	var sb strings.Builder
	for i, step := range list {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, step)
	}
	*r = reasoning(sb.String())
	return nil
}

// ParseToolCall converts one function call into a Verdict.
func ParseToolCall(name string, args json.RawMessage) (*Verdict, error) {
	var a toolArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, fmt.Errorf("%w: %s args: %v", ErrMalformedVerdict, name, err)
		}
	}

	switch name {
	case ToolViolation:
		level, err := severity.Parse(a.Severity)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
		}
		if a.Message == "" {
			return nil, fmt.Errorf("%w: violation without message", ErrMalformedVerdict)
		}
		return &Verdict{
			Safe:      level == severity.Safe,
			Severity:  level,
			Message:   a.Message,
			Location:  a.Location,
			Reasoning: string(a.Reasoning),
		}, nil
	case ToolSafe:
		return &Verdict{
			Safe:      true,
			Severity:  severity.Safe,
			Message:   "No hazards detected",
			Location:  a.Location,
			Reasoning: string(a.Reasoning),
		}, nil
	}
	return nil, fmt.Errorf("%w: unexpected tool %q", ErrMalformedVerdict, name)
}
