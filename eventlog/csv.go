package eventlog

import (
	"encoding/csv"
	"io"
	"strings"
	"time"
)

// ReasoningSeparator joins reasoning steps in a CSV cell.
const ReasoningSeparator = " | "

var csvHeader = []string{"timestamp", "severity", "location", "message", "reasoning"}

// WriteCSV renders one row per event under a fixed header.
func WriteCSV(w io.Writer, events []Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, ev := range events {
		row := []string{
			ev.Timestamp.Format(time.RFC3339),
			string(ev.Severity),
			ev.Location,
			ev.Message,
			strings.Join(ev.Reasoning, ReasoningSeparator),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
