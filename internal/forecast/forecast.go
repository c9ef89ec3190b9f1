// Package forecast trains a per-product price model on observed history
// and writes predictions for the coming days with their real price left
// unresolved for the reconciler.
package forecast

import (
	"fmt"
	"log"

	"pricewatch/internal/database"
)

// Result holds the results of a forecasting run.
type Result struct {
	ForecastsCreated int
	ProductsSkipped  int
}

// Options configures a Forecaster. Zero values fall back to defaults.
type Options struct {
	HorizonDays int
	MinHistory  int
	NewModel    func() Model
}

// Forecaster produces forecasts for every product with enough history.
type Forecaster struct {
	db       *database.DB
	horizon  int
	minHist  int
	newModel func() Model
}

// New creates a Forecaster over the given store.
func New(db *database.DB, opts Options) *Forecaster {
	if opts.HorizonDays == 0 {
		opts.HorizonDays = 3
	}
	if opts.MinHistory == 0 {
		opts.MinHistory = 5
	}
	if opts.NewModel == nil {
		opts.NewModel = func() Model { return NewRidge() }
	}
	return &Forecaster{
		db:       db,
		horizon:  opts.HorizonDays,
		minHist:  opts.MinHistory,
		newModel: opts.NewModel,
	}
}

// Run trains one model per product and inserts forecasts for the next
// horizon days after each product's last observation. Keys that already
// hold a forecast are skipped, so re-running a day is a no-op.
func (f *Forecaster) Run() (*Result, error) {
	history, err := f.db.GetObservationHistory()
	if err != nil {
		return nil, fmt.Errorf("loading observation history: %w", err)
	}
	if len(history) == 0 {
		log.Println("No observations to forecast from")
		return &Result{}, nil
	}

	allSeries := buildSeries(history)

	// Feature baseline shared across products, matching how rows were
	// scraped: days count from the earliest observation anywhere.
	start := allSeries[0].points[0].day
	for _, s := range allSeries {
		if s.points[0].day.Before(start) {
			start = s.points[0].day
		}
	}

	result := &Result{}
	for _, s := range allSeries {
		created, err := f.forecastProduct(s, start)
		if err != nil {
			return nil, err
		}
		if created < 0 {
			result.ProductsSkipped++
			continue
		}
		result.ForecastsCreated += created
	}

	log.Printf("Forecasting complete: %d forecasts created, %d products skipped",
		result.ForecastsCreated, result.ProductsSkipped)
	return result, nil
}

// forecastProduct fits and predicts one product. Returns -1 when the
// product lacks history.
func (f *Forecaster) forecastProduct(s series, start database.Day) (int, error) {
	if len(s.points) < f.minHist {
		log.Printf("Product %d: only %d days of history, skipping", s.productID, len(s.points))
		return -1, nil
	}

	features := make([][]float64, len(s.points))
	target := make([]float64, len(s.points))
	for i, p := range s.points {
		features[i] = featureVector(snapshotAt(s, i, start))
		target[i] = p.price
	}

	model := f.newModel()
	if err := model.Fit(features, target); err != nil {
		return 0, fmt.Errorf("fitting model for product %d: %w", s.productID, err)
	}

	created := 0
	lastDay := s.points[len(s.points)-1].day
	for offset := 1; offset <= f.horizon; offset++ {
		day := lastDay.AddDays(offset)

		exists, err := f.db.HasForecast(s.productID, day)
		if err != nil {
			return 0, fmt.Errorf("checking forecast for product %d: %w", s.productID, err)
		}
		if exists {
			continue
		}

		snapshot := futureSnapshot(s, day, start)
		predicted := model.Predict(featureVector(snapshot))
		_, err = f.db.InsertForecast(database.Forecast{
			ProductID:      s.productID,
			Day:            day,
			PredictedPrice: predicted,
			Features:       snapshot,
		})
		if err != nil {
			return 0, fmt.Errorf("storing forecast for product %d: %w", s.productID, err)
		}
		created++
	}

	log.Printf("Product %d: %d forecasts from %d days of history", s.productID, created, len(s.points))
	return created, nil
}
