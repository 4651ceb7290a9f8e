package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/go-omads/omads/internal/server"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// formatSessions renders a slice of session summaries in the requested format.
func formatSessions(sessions []server.SessionSummary, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(sessions)
	case formatTable:
		return formatSessionsTable(sessions)
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatSession renders a single session summary in the requested format.
func formatSession(session server.SessionSummary, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(session)
	case formatTable:
		return formatSessionDetail(session), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatChangeLog renders a ChangeLog record in the requested format.
func formatChangeLog(rec server.GetChangeLogResponse, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(rec)
	case formatTable:
		return formatChangeLogTable(rec), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// --- Table formatters ---

func formatSessionsTable(sessions []server.SessionSummary) (string, error) {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION-ID\tREMOTE-DEVICE\tROLE\tPHASE")

	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.SessionID, s.RemoteDevice, s.Role, s.Phase)
	}

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("flush tabwriter: %w", err)
	}

	return buf.String(), nil
}

func formatSessionDetail(s server.SessionSummary) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Session ID:\t%s\n", s.SessionID)
	fmt.Fprintf(w, "Remote Device:\t%s\n", s.RemoteDevice)
	fmt.Fprintf(w, "Role:\t%s\n", s.Role)
	fmt.Fprintf(w, "Phase:\t%s\n", s.Phase)

	_ = w.Flush()

	return buf.String()
}

func formatChangeLogTable(rec server.GetChangeLogResponse) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Local Anchor:\t%s\n", rec.LocalAnchor)
	fmt.Fprintf(w, "Remote Anchor:\t%s\n", rec.RemoteAnchor)
	fmt.Fprintf(w, "Mappings:\t%d\n", len(rec.Mappings))

	if len(rec.Mappings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "LOCAL-KEY\tREMOTE-KEY")
		for _, m := range rec.Mappings {
			fmt.Fprintf(w, "%s\t%s\n", m.LocalKey, m.RemoteKey)
		}
	}

	_ = w.Flush()

	return buf.String()
}

// formatJSONValue marshals any view value to indented JSON, appending a
// trailing newline so table and JSON output compose the same way under the
// shell's line-oriented prompt.
func formatJSONValue(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal to JSON: %w", err)
	}

	return string(data) + "\n", nil
}
