package analyzer

import (
	"sort"
	"sync"
	"time"

	"github.com/riwatch/backend/internal/model"
)

// defaultWorkers bounds fan-out when the caller does not.
const defaultWorkers = 8

// BatchResult collects one analysis pass across many RIs. Per-RI
// failures are isolated: an error for one RI never aborts the rest.
type BatchResult struct {
	Records []model.AnalysisRecord
	Errors  map[model.RIKey]error
}

// AnalyzeBatch runs Analyze over every RI history, fanning out across a
// bounded worker pool. Each call is independent; no state is shared
// between RIs. Records come back sorted by RI identity so the result is
// deterministic regardless of scheduling.
func AnalyzeBatch(histories map[model.RIKey][]model.UsageObservation, referenceDate time.Time, cfg Config, workers int) *BatchResult {
	if workers <= 0 {
		workers = defaultWorkers
	}

	result := &BatchResult{Errors: make(map[model.RIKey]error)}

	type item struct {
		key     model.RIKey
		history []model.UsageObservation
	}
	work := make(chan item)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range work {
				if len(it.history) == 0 {
					mu.Lock()
					result.Errors[it.key] = &InsufficientDataError{Key: it.key}
					mu.Unlock()
					continue
				}
				rec, err := Analyze(it.history, referenceDate, cfg)
				mu.Lock()
				if err != nil {
					result.Errors[it.key] = err
				} else {
					result.Records = append(result.Records, *rec)
				}
				mu.Unlock()
			}
		}()
	}

	for key, history := range histories {
		work <- item{key: key, history: history}
	}
	close(work)
	wg.Wait()

	sort.Slice(result.Records, func(i, j int) bool {
		a, b := result.Records[i], result.Records[j]
		if a.SubscriptionID != b.SubscriptionID {
			return a.SubscriptionID < b.SubscriptionID
		}
		return a.ResourceID < b.ResourceID
	})

	return result
}
