// api/schemas/profiling.go
package schemas

import "time"

// ProfilingPhase is one measured phase of a top-level operation.
type ProfilingPhase struct {
	Name          string         `json:"name"`
	StartedAt     time.Time      `json:"started_at"`
	EndedAt       time.Time      `json:"ended_at"`
	DurationMs    float64        `json:"duration_ms"`
	Success       bool           `json:"success"`
	MemoryDeltaMb *float64       `json:"memory_delta_mb,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// ProfilingData is the assembled measurement report for one operation
// invocation (detect or fill). It is immutable once the operation completes.
type ProfilingData struct {
	Operation        string           `json:"operation"`
	Phases           []ProfilingPhase `json:"phases"`
	TotalDurationMs  float64          `json:"total_duration_ms"`
	PeakMemoryMb     *float64         `json:"peak_memory_mb,omitempty"`
	SlowestPhase     string           `json:"slowest_phase,omitempty"`
	SlowestPhaseMs   float64          `json:"slowest_phase_ms,omitempty"`
	FieldCount       int              `json:"field_count,omitempty"`
	ScreenshotCount  int              `json:"screenshot_count,omitempty"`
	ProfiledAt       time.Time        `json:"profiled_at"`
}
