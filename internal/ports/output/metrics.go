package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncJobCount increments the job counter.
	IncJobCount(operation string, success bool)

	// ObserveJobDuration records job execution time.
	ObserveJobDuration(operation string, duration time.Duration)

	// IncPrimitiveFailures counts boolean primitive failures by reason.
	IncPrimitiveFailures(operation string, reason string)

	// IncSkippedPairs counts operand pairs abandoned after degraded retry.
	IncSkippedPairs(operation string)

	// SetQueuedJobs sets the number of jobs waiting for a worker.
	SetQueuedJobs(count int)

	// SetLayersLoaded sets the number of catalog layers.
	SetLayersLoaded(count int)

	// IncStorageOperations increments storage operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveStorageDuration records storage operation duration.
	ObserveStorageDuration(operation string, duration time.Duration)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncJobCount implements MetricsCollector.
func (n *NoOpMetrics) IncJobCount(_ string, _ bool) {}

// ObserveJobDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveJobDuration(_ string, _ time.Duration) {}

// IncPrimitiveFailures implements MetricsCollector.
func (n *NoOpMetrics) IncPrimitiveFailures(_ string, _ string) {}

// IncSkippedPairs implements MetricsCollector.
func (n *NoOpMetrics) IncSkippedPairs(_ string) {}

// SetQueuedJobs implements MetricsCollector.
func (n *NoOpMetrics) SetQueuedJobs(_ int) {}

// SetLayersLoaded implements MetricsCollector.
func (n *NoOpMetrics) SetLayersLoaded(_ int) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveStorageDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}
