// Package aggregate rolls observations, forecasts, and error metrics
// into the denormalized fact table the reporting side reads.
package aggregate

import (
	"fmt"
	"log"

	"pricewatch/internal/database"
)

// Aggregator builds fact rows for a trailing date window.
type Aggregator struct {
	db         *database.DB
	windowDays int
}

// New creates an Aggregator. windowDays controls the default trailing
// window; 1 means yesterday through today.
func New(db *database.DB, windowDays int) *Aggregator {
	if windowDays < 1 {
		windowDays = 1
	}
	return &Aggregator{db: db, windowDays: windowDays}
}

// Aggregate merges the three stores into fact rows for [start, end].
// One row per (product, day); duplicates on either join side collapse
// via the max-value merge, and re-running a window upserts in place.
func (a *Aggregator) Aggregate(start, end database.Day) (int, error) {
	if end.Before(start) {
		return 0, fmt.Errorf("window end %s precedes start %s", end, start)
	}

	count, err := a.db.AggregateFacts(start, end)
	if err != nil {
		return 0, fmt.Errorf("aggregating facts for %s..%s: %w", start, end, err)
	}
	if count == 0 {
		log.Printf("No forecasts in window %s..%s", start, end)
		return 0, nil
	}
	log.Printf("Fact table updated for %s..%s: %d rows", start, end, count)
	return count, nil
}

// AggregateTrailing runs the default trailing window ending today.
func (a *Aggregator) AggregateTrailing(today database.Day) (int, error) {
	return a.Aggregate(today.AddDays(-a.windowDays), today)
}
