// Package evaluate scores the forecasting model per product by comparing
// predictions against reconciled real prices.
package evaluate

import (
	"fmt"
	"log"
	"math"

	"pricewatch/internal/database"
)

// Evaluator recomputes per-product accuracy metrics.
type Evaluator struct {
	db *database.DB
}

// New creates an Evaluator over the given store.
func New(db *database.DB) *Evaluator {
	return &Evaluator{db: db}
}

// Evaluate groups resolved forecasts by product, computes MAE and RMSE
// per group, and overwrites each product's metric row. Products with no
// resolved forecasts are skipped; an empty input is not an error.
// Returns the number of metric rows written.
func (e *Evaluator) Evaluate() (int, error) {
	resolved, err := e.db.GetResolvedForecasts()
	if err != nil {
		return 0, fmt.Errorf("loading resolved forecasts: %w", err)
	}
	if len(resolved) == 0 {
		log.Println("No reconciled forecasts to evaluate")
		return 0, nil
	}

	groups := make(map[int64][]database.Forecast)
	var order []int64
	for _, f := range resolved {
		if _, ok := groups[f.ProductID]; !ok {
			order = append(order, f.ProductID)
		}
		groups[f.ProductID] = append(groups[f.ProductID], f)
	}

	metrics := make([]database.ErrorMetric, 0, len(order))
	for _, productID := range order {
		group := groups[productID]
		mae, rmse := Score(group)
		metrics = append(metrics, database.ErrorMetric{
			ProductID:   productID,
			MAE:         mae,
			RMSE:        rmse,
			SampleCount: len(group),
		})
	}

	count, err := e.db.UpsertErrorMetrics(metrics)
	if err != nil {
		return 0, fmt.Errorf("writing error metrics: %w", err)
	}
	log.Printf("Evaluation complete: metrics written for %d products", count)
	return count, nil
}

// Score computes mean absolute error and root-mean-squared error over a
// group of resolved forecasts. A group of one yields mae = rmse = the
// absolute residual.
func Score(group []database.Forecast) (mae, rmse float64) {
	if len(group) == 0 {
		return 0, 0
	}
	var sumAbs, sumSq float64
	for _, f := range group {
		residual := *f.RealPrice - f.PredictedPrice
		sumAbs += math.Abs(residual)
		sumSq += residual * residual
	}
	n := float64(len(group))
	return sumAbs / n, math.Sqrt(sumSq / n)
}
