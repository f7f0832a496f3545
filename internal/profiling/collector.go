// internal/profiling/collector.go
package profiling

import (
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/Badis-tech/autoapply/api/schemas"
)

const bytesPerMb = 1024 * 1024

// Collector measures the named phases of one top-level operation (detect or
// fill). It is cheap enough to always be on: every measurement is a clock
// read plus, when available, one process RSS sample, so its overhead stays a
// small fraction of any remote round trip it wraps.
//
// A nil *Collector is valid and records nothing, so call sites never need to
// branch on whether profiling is enabled.
type Collector struct {
	operation string
	startedAt time.Time

	mu     sync.Mutex
	phases []schemas.ProfilingPhase
	peakMb *float64
	counts struct {
		fields      int
		screenshots int
	}

	proc *process.Process
}

// NewCollector starts a measurement session for the named operation.
func NewCollector(operation string) *Collector {
	c := &Collector{
		operation: operation,
		startedAt: time.Now(),
	}
	// Memory sampling is best effort: if the process handle cannot be
	// obtained, every memory metric degrades to nil.
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		c.proc = proc
	}
	return c
}

// memoryMb samples the process RSS. Returns nil when sampling is unavailable;
// a profiling failure must never abort the measured operation.
func (c *Collector) memoryMb() *float64 {
	if c == nil || c.proc == nil {
		return nil
	}
	info, err := c.proc.MemoryInfo()
	if err != nil || info == nil {
		return nil
	}
	mb := float64(info.RSS) / bytesPerMb
	return &mb
}

// Phase is the scoped handle for one running phase. End records the
// measurement exactly once, on whichever exit path runs first.
type Phase struct {
	c         *Collector
	name      string
	startedAt time.Time
	memBefore *float64
	metadata  map[string]any

	once sync.Once
}

// StartPhase begins measuring a named phase. Safe on a nil collector.
func (c *Collector) StartPhase(name string, metadata map[string]any) *Phase {
	if c == nil {
		return nil
	}
	return &Phase{
		c:         c,
		name:      name,
		startedAt: time.Now(),
		memBefore: c.memoryMb(),
		metadata:  metadata,
	}
}

// End completes the phase. Subsequent calls are no-ops, so it is safe to
// defer an End(false) as a failure guard and call End(true) on success.
func (p *Phase) End(success bool) {
	if p == nil {
		return
	}
	p.once.Do(func() {
		endedAt := time.Now()
		memAfter := p.c.memoryMb()

		var delta *float64
		if p.memBefore != nil && memAfter != nil {
			d := *memAfter - *p.memBefore
			delta = &d
		}

		p.c.mu.Lock()
		defer p.c.mu.Unlock()

		if memAfter != nil && (p.c.peakMb == nil || *memAfter > *p.c.peakMb) {
			peak := *memAfter
			p.c.peakMb = &peak
		}

		p.c.phases = append(p.c.phases, schemas.ProfilingPhase{
			Name:          p.name,
			StartedAt:     p.startedAt,
			EndedAt:       endedAt,
			DurationMs:    float64(endedAt.Sub(p.startedAt)) / float64(time.Millisecond),
			Success:       success,
			MemoryDeltaMb: delta,
			Metadata:      p.metadata,
		})
	})
}

// EndErr completes the phase, deriving the success flag from err.
func (p *Phase) EndErr(err error) {
	p.End(err == nil)
}

// SetFieldCount records how many fields the operation touched.
func (c *Collector) SetFieldCount(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts.fields = n
}

// AddScreenshot bumps the screenshot counter.
func (c *Collector) AddScreenshot() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts.screenshots++
}

// Finish assembles the immutable report. Returns nil on a nil collector.
func (c *Collector) Finish() *schemas.ProfilingData {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	data := &schemas.ProfilingData{
		Operation:       c.operation,
		Phases:          append([]schemas.ProfilingPhase(nil), c.phases...),
		TotalDurationMs: float64(time.Since(c.startedAt)) / float64(time.Millisecond),
		PeakMemoryMb:    c.peakMb,
		FieldCount:      c.counts.fields,
		ScreenshotCount: c.counts.screenshots,
		ProfiledAt:      time.Now().UTC(),
	}

	for _, ph := range data.Phases {
		if ph.DurationMs > data.SlowestPhaseMs {
			data.SlowestPhase = ph.Name
			data.SlowestPhaseMs = ph.DurationMs
		}
	}
	return data
}
