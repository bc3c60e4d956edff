package tracer

import "time"

// StageTiming records how long one pipeline stage ran.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// runMetrics collects stage timings for one trace run.
type runMetrics struct {
	timings []StageTiming
}

func (m *runMetrics) track(stage string) func() {
	start := time.Now()
	return func() {
		m.timings = append(m.timings, StageTiming{Stage: stage, Duration: time.Since(start)})
	}
}

func (m *runMetrics) fields() map[string]interface{} {
	fields := make(map[string]interface{}, len(m.timings))
	for _, t := range m.timings {
		fields[t.Stage] = t.Duration.String()
	}
	return fields
}

// StatusCode classifies engine status events.
type StatusCode int

const (
	// StatusDegraded reports a backend failure with fallback to the
	// sequential pure-Go path.
	StatusDegraded StatusCode = iota
	// StatusPrecached reports a completed precache warm-up.
	StatusPrecached
)

// StatusEvent is an out-of-band notification; errors that degrade but do
// not fail a run are reported here instead of aborting.
type StatusEvent struct {
	Code    StatusCode
	Message string
	Err     error
}
