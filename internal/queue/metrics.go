package queue

import "time"

// Metrics captures per-job telemetry from the worker server.
type Metrics interface {
	// JobStarted is called when a leased job begins processing.
	JobStarted(taskType string)
	// JobFinished is called with the job outcome and processing duration.
	JobFinished(taskType, outcome string, duration time.Duration)
}

// NopMetrics is a no-op metrics recorder.
type NopMetrics struct{}

// JobStarted implements Metrics.
func (NopMetrics) JobStarted(string) {}

// JobFinished implements Metrics.
func (NopMetrics) JobFinished(string, string, time.Duration) {}
