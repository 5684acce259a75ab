package thumbnail

import "time"

// Generation outcomes reported to Metrics.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
)

// Service request results reported to Metrics.
const (
	RequestHit       = "hit"
	RequestGenerated = "generated"
	RequestShared    = "shared"
	RequestError     = "error"
)

// Metrics receives thumbnail pipeline observations.
//
// Implementations must be safe for concurrent use: workers report in
// parallel.
type Metrics interface {
	// ObserveGeneration records one generation attempt and how long it took.
	ObserveGeneration(outcome string, d time.Duration)

	// RecordRequest records how a Service request was satisfied.
	RecordRequest(result string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveGeneration(string, time.Duration) {}
func (noopMetrics) RecordRequest(string)                    {}
