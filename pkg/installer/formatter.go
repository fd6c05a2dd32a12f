package installer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatSummary renders a run summary in the requested format.
func FormatSummary(summary *Summary, format string) (string, error) {
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return string(data), nil
	case "text", "":
		return formatText(summary), nil
	default:
		return "", fmt.Errorf("unsupported format: %s (supported: text, json)", format)
	}
}

func formatText(summary *Summary) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("CP4I %s (run %s)\n\n", summary.Version, summary.RunID))

	if len(summary.Operators) > 0 {
		b.WriteString(fmt.Sprintf("Operators (%d):\n", len(summary.Operators)))
		for _, op := range summary.Operators {
			b.WriteString(fmt.Sprintf("  %s (%s): CASE %s, channel %s\n",
				op.Name, op.FriendlyName, op.BundleRef(), op.Channel))
		}
		b.WriteString("\n")
	}

	if len(summary.Skipped) > 0 {
		b.WriteString(fmt.Sprintf("Skipped (%d):\n", len(summary.Skipped)))
		for _, s := range summary.Skipped {
			b.WriteString(fmt.Sprintf("  %s: %s\n", s.Name, s.Reason))
		}
		b.WriteString("\n")
	}

	if len(summary.Written) > 0 {
		b.WriteString(fmt.Sprintf("Manifests written: %d\n", len(summary.Written)))
	}
	if len(summary.Applied) > 0 {
		b.WriteString(fmt.Sprintf("Manifests applied: %d\n", len(summary.Applied)))
		for _, id := range summary.Applied {
			b.WriteString(fmt.Sprintf("  %s\n", id))
		}
	}
	if summary.Failed != "" {
		b.WriteString(fmt.Sprintf("Failed: %s\n", summary.Failed))
	}

	return b.String()
}
