package forecast

import (
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"pricewatch/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func fptr(f float64) *float64 { return &f }

// seedHistory inserts one observation per day starting 2024-01-01.
func seedHistory(t *testing.T, db *database.DB, productID int64, prices []float64) {
	t.Helper()
	day := database.Day("2024-01-01")
	for i, price := range prices {
		_, err := db.InsertObservation(database.Observation{
			ProductID: productID,
			Day:       day.AddDays(i),
			Price:     price,
			Rating:    fptr(4.5),
			ScrapedAt: fmt.Sprintf("%s 06:00:00", day.AddDays(i)),
		})
		if err != nil {
			t.Fatalf("seed observation: %v", err)
		}
	}
}

func TestRidgeFitsConstantSeries(t *testing.T) {
	m := NewRidge()
	X := [][]float64{{1, 1}, {2, 4}, {3, 2}, {4, 3}, {5, 5}}
	y := []float64{50, 50, 50, 50, 50}
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := m.Predict([]float64{6, 7})
	if math.Abs(got-50) > 1e-6 {
		t.Errorf("expected prediction 50, got %v", got)
	}
}

func TestRidgeFitsLinearTrend(t *testing.T) {
	m := NewRidge()
	var X [][]float64
	var y []float64
	for i := 0; i < 20; i++ {
		X = append(X, []float64{float64(i)})
		y = append(y, 100+2*float64(i))
	}
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := m.Predict([]float64{25})
	if math.Abs(got-150) > 0.1 {
		t.Errorf("expected prediction near 150, got %v", got)
	}
}

func TestRidgeHandlesCollinearFeatures(t *testing.T) {
	m := NewRidge()
	// Second column is an exact copy of the first; plain least squares
	// would be singular here.
	var X [][]float64
	var y []float64
	for i := 0; i < 10; i++ {
		X = append(X, []float64{float64(i), float64(i)})
		y = append(y, 10+3*float64(i))
	}
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := m.Predict([]float64{12, 12})
	if math.Abs(got-46) > 0.1 {
		t.Errorf("expected prediction near 46, got %v", got)
	}
}

func TestRidgeRejectsEmptyInput(t *testing.T) {
	if err := NewRidge().Fit(nil, nil); err == nil {
		t.Error("expected error for empty training data")
	}
}

func TestRidgePredictBeforeFit(t *testing.T) {
	if got := NewRidge().Predict([]float64{1, 2}); got != 0 {
		t.Errorf("expected 0 before fit, got %v", got)
	}
}

func TestBuildSeriesCollapsesSameDayDuplicates(t *testing.T) {
	observations := []database.Observation{
		{ProductID: 1, Day: "2024-01-01", Price: 10, ScrapedAt: "2024-01-01 06:00:00"},
		{ProductID: 1, Day: "2024-01-01", Price: 12, ScrapedAt: "2024-01-01 18:00:00"},
		{ProductID: 1, Day: "2024-01-02", Price: 11, ScrapedAt: "2024-01-02 06:00:00"},
	}
	series := buildSeries(observations)
	if len(series) != 1 {
		t.Fatalf("expected 1 series, got %d", len(series))
	}
	if len(series[0].points) != 2 {
		t.Fatalf("expected 2 collapsed points, got %d", len(series[0].points))
	}
	// Last write wins for the duplicated day.
	if series[0].points[0].price != 12 {
		t.Errorf("expected last scrape 12 to win, got %v", series[0].points[0].price)
	}
}

func TestTrailingMeanShortPrefix(t *testing.T) {
	points := []dayPoint{{price: 10}, {price: 20}, {price: 30}}
	if got := trailingMean(points, 0, 3); got != 10 {
		t.Errorf("expected single-point mean 10, got %v", got)
	}
	if got := trailingMean(points, 2, 3); got != 20 {
		t.Errorf("expected mean 20 over full window, got %v", got)
	}
	if got := trailingMean(points, 2, 7); got != 20 {
		t.Errorf("expected mean over available prefix, got %v", got)
	}
}

func TestRunCreatesHorizonForecasts(t *testing.T) {
	db := openTestDB(t)
	seedHistory(t, db, 1, []float64{50, 50, 50, 50, 50, 50, 50})

	result, err := New(db, Options{HorizonDays: 3, MinHistory: 5}).Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ForecastsCreated != 3 {
		t.Errorf("expected 3 forecasts, got %d", result.ForecastsCreated)
	}

	unresolved, _ := db.GetUnresolvedForecasts()
	if len(unresolved) != 3 {
		t.Fatalf("expected 3 unresolved forecasts, got %d", len(unresolved))
	}
	// History runs Jan 1-7; forecasts cover the next three days.
	if unresolved[0].Day != "2024-01-08" || unresolved[2].Day != "2024-01-10" {
		t.Errorf("expected forecasts for Jan 8-10, got %s..%s", unresolved[0].Day, unresolved[2].Day)
	}
	for _, f := range unresolved {
		if f.RealPrice != nil {
			t.Error("expected real_price unresolved on fresh forecasts")
		}
		if math.Abs(f.PredictedPrice-50) > 1 {
			t.Errorf("expected prediction near the flat price 50, got %v", f.PredictedPrice)
		}
		if f.Features.MovingAvg7 != 50 {
			t.Errorf("expected moving_avg_7 50, got %v", f.Features.MovingAvg7)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	seedHistory(t, db, 1, []float64{50, 51, 52, 51, 50, 49, 50})

	f := New(db, Options{HorizonDays: 3, MinHistory: 5})
	if _, err := f.Run(); err != nil {
		t.Fatalf("first run: %v", err)
	}
	result, err := f.Run()
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.ForecastsCreated != 0 {
		t.Errorf("expected second run to create 0 forecasts, got %d", result.ForecastsCreated)
	}
}

func TestRunSkipsShortHistory(t *testing.T) {
	db := openTestDB(t)
	seedHistory(t, db, 1, []float64{50, 51})

	result, err := New(db, Options{HorizonDays: 3, MinHistory: 5}).Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ProductsSkipped != 1 {
		t.Errorf("expected 1 product skipped, got %d", result.ProductsSkipped)
	}
	if result.ForecastsCreated != 0 {
		t.Errorf("expected 0 forecasts, got %d", result.ForecastsCreated)
	}
}

func TestRunEmptyHistory(t *testing.T) {
	db := openTestDB(t)
	result, err := New(db, Options{}).Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ForecastsCreated != 0 {
		t.Errorf("expected no forecasts, got %d", result.ForecastsCreated)
	}
}
