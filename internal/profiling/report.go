// internal/profiling/report.go
package profiling

import (
	"fmt"
	"strings"

	"github.com/Badis-tech/autoapply/api/schemas"
)

// FormatReport renders a profiling report as human-readable terminal output
// with a per-phase breakdown and the bottleneck line.
func FormatReport(data *schemas.ProfilingData) string {
	if data == nil {
		return ""
	}

	var b strings.Builder
	rule := strings.Repeat("=", 70)
	thin := strings.Repeat("-", 70)

	fmt.Fprintf(&b, "\n%s\nPROFILING REPORT: %s\n%s\n", rule, data.Operation, rule)
	fmt.Fprintf(&b, "Total Duration: %.2f ms\n", data.TotalDurationMs)
	if data.PeakMemoryMb != nil {
		fmt.Fprintf(&b, "Peak Memory: %.2f MB\n", *data.PeakMemoryMb)
	}
	if data.FieldCount > 0 {
		fmt.Fprintf(&b, "Field Count: %d\n", data.FieldCount)
	}
	if data.ScreenshotCount > 0 {
		fmt.Fprintf(&b, "Screenshot Count: %d\n", data.ScreenshotCount)
	}
	if data.SlowestPhase != "" {
		fmt.Fprintf(&b, "\nBottleneck: %s (%.2f ms)\n", data.SlowestPhase, data.SlowestPhaseMs)
	}

	fmt.Fprintf(&b, "\nPHASE BREAKDOWN:\n%s\n", thin)
	fmt.Fprintf(&b, "%-35s %-15s %-10s %s\n", "Phase", "Duration (ms)", "% of Total", "OK")
	fmt.Fprintf(&b, "%s\n", thin)

	for _, ph := range data.Phases {
		pct := 0.0
		if data.TotalDurationMs > 0 {
			pct = ph.DurationMs / data.TotalDurationMs * 100
		}
		ok := "yes"
		if !ph.Success {
			ok = "no"
		}
		fmt.Fprintf(&b, "%-35s %-15.2f %-10.1f %s\n", ph.Name, ph.DurationMs, pct, ok)
	}
	fmt.Fprintf(&b, "%s\n", rule)

	return b.String()
}
