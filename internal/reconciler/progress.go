package reconciler

import "time"

// Stage names a step of the pipeline.
type Stage string

const (
	StageLoadingBank  Stage = "loading_bank"
	StageLoadingSales Stage = "loading_sales"
	StageMatching     Stage = "matching"
	StageAggregating  Stage = "aggregating"
	StageCompleted    Stage = "completed"
)

// Progress is passed to progress callbacks. Count is stage specific: records
// entering the matcher, pairs being aggregated, or pairs in the result.
type Progress struct {
	Stage     Stage     `json:"stage"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// ProgressCallback is called to report reconciliation progress. Loading
// stages may be reported from concurrent goroutines.
type ProgressCallback func(Progress)

// AddProgressCallback adds a progress callback function
func (rs *ReconciliationService) AddProgressCallback(callback ProgressCallback) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.callbacks = append(rs.callbacks, callback)
}

func (rs *ReconciliationService) notify(stage Stage, count int) {
	rs.mu.RLock()
	callbacks := rs.callbacks
	rs.mu.RUnlock()

	p := Progress{Stage: stage, Count: count, Timestamp: time.Now()}
	for _, cb := range callbacks {
		cb(p)
	}
}
