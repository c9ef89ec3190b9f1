// Package reconcile matches forecasts to observed prices and fills the
// gaps observation never covered. Matching is keyed by (product, calendar
// day); same-day duplicate observations resolve last-write-wins over a
// time-ordered read, so the outcome is deterministic.
package reconcile

import (
	"fmt"
	"log"

	"pricewatch/internal/database"
)

// Reconciler annotates forecasts with observed prices.
type Reconciler struct {
	db *database.DB
}

// New creates a Reconciler over the given store.
func New(db *database.DB) *Reconciler {
	return &Reconciler{db: db}
}

// matchKey is the reconciliation key shared by both tables.
type matchKey struct {
	productID int64
	day       database.Day
}

// Reconcile resolves unresolved forecasts against matching observations.
// Returns the number of forecasts updated. Forecasts with no matching
// observation stay unresolved for a later pass; an empty backlog is not
// an error. All updates commit in one transaction.
func (r *Reconciler) Reconcile() (int, error) {
	unresolved, err := r.db.GetUnresolvedForecasts()
	if err != nil {
		return 0, fmt.Errorf("loading unresolved forecasts: %w", err)
	}
	if len(unresolved) == 0 {
		log.Println("No forecasts waiting for real prices")
		return 0, nil
	}
	log.Printf("Reconciling %d unresolved forecasts", len(unresolved))

	seen := make(map[int64]struct{})
	var productIDs []int64
	for _, f := range unresolved {
		if _, ok := seen[f.ProductID]; ok {
			continue
		}
		seen[f.ProductID] = struct{}{}
		productIDs = append(productIDs, f.ProductID)
	}

	observations, err := r.db.GetObservationsForProducts(productIDs)
	if err != nil {
		return 0, fmt.Errorf("loading observations: %w", err)
	}
	log.Printf("%d observations read", len(observations))

	// Later scrapes of the same (product, day) overwrite earlier ones;
	// the read is ordered by scrape time so the last write wins.
	prices := make(map[matchKey]float64, len(observations))
	for _, o := range observations {
		prices[matchKey{o.ProductID, o.Day}] = o.Price
	}

	var updates []database.RealPriceUpdate
	for _, f := range unresolved {
		price, ok := prices[matchKey{f.ProductID, f.Day}]
		if !ok {
			continue
		}
		updates = append(updates, database.RealPriceUpdate{
			ForecastID: f.ID,
			RealPrice:  price,
			Source:     database.SourceObserved,
		})
	}

	count, err := r.db.ApplyRealPrices(updates)
	if err != nil {
		return 0, fmt.Errorf("applying real prices: %w", err)
	}
	log.Printf("Reconciliation complete: %d of %d forecasts resolved", count, len(unresolved))
	return count, nil
}
