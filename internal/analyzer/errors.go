package analyzer

import (
	"fmt"
	"time"

	"github.com/riwatch/backend/internal/model"
)

// DataIntegrityError reports a history that violates the one-observation-
// per-day contract (duplicate or out-of-order report dates). The RI is
// skipped for the run; other RIs are unaffected.
type DataIntegrityError struct {
	Key  model.RIKey
	Date time.Time
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("analyzer: duplicate or out-of-order report date %s for RI %s",
		e.Date.Format("2006-01-02"), e.Key)
}

// InsufficientDataError reports an RI for which nothing can be computed:
// no observation exists and no purchase date or term is known.
type InsufficientDataError struct {
	Key model.RIKey
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("analyzer: no usable observation for RI %s", e.Key)
}

// ValidationError reports malformed numeric input, such as a negative
// usage quantity. The analyzer never clamps or guesses.
type ValidationError struct {
	Key   model.RIKey
	Date  time.Time
	Field string
	Value float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("analyzer: invalid %s %v on %s for RI %s",
		e.Field, e.Value, e.Date.Format("2006-01-02"), e.Key)
}
