package reconcile

import (
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

func addObservation(t *testing.T, db *database.DB, productID int64, day database.Day, price float64, scrapedAt string) {
	t.Helper()
	_, err := db.InsertObservation(database.Observation{
		ProductID: productID, Day: day, Price: price, ScrapedAt: scrapedAt,
	})
	if err != nil {
		t.Fatalf("insert observation: %v", err)
	}
}

func addForecast(t *testing.T, db *database.DB, productID int64, day database.Day, predicted float64) int64 {
	t.Helper()
	id, err := db.InsertForecast(database.Forecast{
		ProductID: productID, Day: day, PredictedPrice: predicted,
	})
	if err != nil {
		t.Fatalf("insert forecast: %v", err)
	}
	return id
}

func TestReconcileMatchesObservedPrice(t *testing.T) {
	db := openTestDB(t)
	addObservation(t, db, 7, "2024-01-01", 49.99, "2024-01-01 06:00:00")
	id := addForecast(t, db, 7, "2024-01-01", 51.20)

	count, err := New(db).Reconcile()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 forecast updated, got %d", count)
	}

	f, _ := db.GetForecast(id)
	if f.RealPrice == nil || *f.RealPrice != 49.99 {
		t.Errorf("expected real_price 49.99, got %v", f.RealPrice)
	}
	if f.PriceSource == nil || *f.PriceSource != database.SourceObserved {
		t.Errorf("expected source 'observed', got %v", f.PriceSource)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	addObservation(t, db, 7, "2024-01-01", 49.99, "2024-01-01 06:00:00")
	addForecast(t, db, 7, "2024-01-01", 51.20)

	r := New(db)
	if _, err := r.Reconcile(); err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	count, err := r.Reconcile()
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if count != 0 {
		t.Errorf("expected second reconcile to update 0 rows, got %d", count)
	}
}

func TestReconcileEmptyBacklogIsNoOp(t *testing.T) {
	db := openTestDB(t)
	count, err := New(db).Reconcile()
	if err != nil {
		t.Fatalf("expected no error on empty backlog, got %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 updates, got %d", count)
	}
}

func TestReconcileLeavesUnmatchedNull(t *testing.T) {
	db := openTestDB(t)
	addObservation(t, db, 7, "2024-01-01", 49.99, "2024-01-01 06:00:00")
	matched := addForecast(t, db, 7, "2024-01-01", 51.20)
	unmatched := addForecast(t, db, 7, "2024-01-02", 52.00)

	count, err := New(db).Reconcile()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 update, got %d", count)
	}

	f, _ := db.GetForecast(matched)
	if f.RealPrice == nil {
		t.Error("expected matched forecast resolved")
	}
	f, _ = db.GetForecast(unmatched)
	if f.RealPrice != nil {
		t.Error("expected unmatched forecast to stay unresolved for a later pass")
	}
}

func TestReconcileDuplicateObservationsLastWriteWins(t *testing.T) {
	db := openTestDB(t)
	// Two scrapes the same day; the later one must win deterministically.
	addObservation(t, db, 7, "2024-01-01", 48.00, "2024-01-01 06:00:00")
	addObservation(t, db, 7, "2024-01-01", 49.99, "2024-01-01 18:00:00")
	id := addForecast(t, db, 7, "2024-01-01", 51.20)

	if _, err := New(db).Reconcile(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, _ := db.GetForecast(id)
	if f.RealPrice == nil || *f.RealPrice != 49.99 {
		t.Errorf("expected last-scraped price 49.99, got %v", f.RealPrice)
	}
}

func TestFillGapsInterpolatesBoundedRun(t *testing.T) {
	db := openTestDB(t)
	ids := []int64{
		addForecast(t, db, 1, "2024-01-01", 10),
		addForecast(t, db, 1, "2024-01-02", 11),
		addForecast(t, db, 1, "2024-01-03", 12),
		addForecast(t, db, 1, "2024-01-04", 16),
	}
	db.ApplyRealPrices([]database.RealPriceUpdate{
		{ForecastID: ids[0], RealPrice: 10, Source: database.SourceObserved},
		{ForecastID: ids[3], RealPrice: 16, Source: database.SourceObserved},
	})

	count, err := New(db).FillGaps("2024-01-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 4 {
		t.Errorf("expected full rewrite of 4 rows, got %d", count)
	}

	want := []struct {
		price  float64
		source string
	}{
		{10, database.SourceObserved},
		{12, database.SourceInterpolated},
		{14, database.SourceInterpolated},
		{16, database.SourceObserved},
	}
	for i, id := range ids {
		f, _ := db.GetForecast(id)
		if f.RealPrice == nil || *f.RealPrice != want[i].price {
			t.Errorf("row %d: expected price %v, got %v", i, want[i].price, f.RealPrice)
		}
		if f.PriceSource == nil || *f.PriceSource != want[i].source {
			t.Errorf("row %d: expected source %q, got %v", i, want[i].source, f.PriceSource)
		}
	}
}

func TestFillGapsUnboundedEdgeFallsBackToPredicted(t *testing.T) {
	db := openTestDB(t)
	first := addForecast(t, db, 1, "2024-01-01", 9.50)
	second := addForecast(t, db, 1, "2024-01-02", 10)
	third := addForecast(t, db, 1, "2024-01-03", 12)
	db.ApplyRealPrices([]database.RealPriceUpdate{
		{ForecastID: second, RealPrice: 10, Source: database.SourceObserved},
		{ForecastID: third, RealPrice: 12, Source: database.SourceObserved},
	})

	if _, err := New(db).FillGaps("2024-01-31"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, _ := db.GetForecast(first)
	if f.RealPrice == nil || *f.RealPrice != 9.50 {
		t.Errorf("expected fallback to predicted 9.50, got %v", f.RealPrice)
	}
	if f.PriceSource == nil || *f.PriceSource != database.SourcePredicted {
		t.Errorf("expected source 'predicted', got %v", f.PriceSource)
	}
}

func TestFillGapsIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	a := addForecast(t, db, 1, "2024-01-01", 10)
	b := addForecast(t, db, 1, "2024-01-02", 11)
	c := addForecast(t, db, 1, "2024-01-03", 16)
	db.ApplyRealPrices([]database.RealPriceUpdate{
		{ForecastID: a, RealPrice: 10, Source: database.SourceObserved},
		{ForecastID: c, RealPrice: 16, Source: database.SourceObserved},
	})

	r := New(db)
	if _, err := r.FillGaps("2024-01-31"); err != nil {
		t.Fatalf("first fill: %v", err)
	}
	firstPass, _ := db.GetForecast(b)

	if _, err := r.FillGaps("2024-01-31"); err != nil {
		t.Fatalf("second fill: %v", err)
	}
	secondPass, _ := db.GetForecast(b)

	if *firstPass.RealPrice != *secondPass.RealPrice {
		t.Errorf("expected identical values across runs, got %v then %v",
			*firstPass.RealPrice, *secondPass.RealPrice)
	}
	if *secondPass.PriceSource != database.SourceInterpolated {
		t.Errorf("expected source to stay 'interpolated', got %q", *secondPass.PriceSource)
	}
}

func TestFillGapsDeduplicatesByProductDay(t *testing.T) {
	db := openTestDB(t)
	// Pre-existing duplicate forecast rows for the same key.
	first := addForecast(t, db, 1, "2024-01-01", 10)
	addForecast(t, db, 1, "2024-01-01", 99)

	count, err := New(db).FillGaps("2024-01-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row after dedupe, got %d", count)
	}

	f, _ := db.GetForecast(first)
	if f.RealPrice == nil || *f.RealPrice != 10 {
		t.Errorf("expected first duplicate kept with predicted fallback 10, got %v", f.RealPrice)
	}
}

func TestFillGapsSkipsFutureForecasts(t *testing.T) {
	db := openTestDB(t)
	past := addForecast(t, db, 1, "2024-01-01", 10)
	future := addForecast(t, db, 1, "2024-03-01", 20)

	count, err := New(db).FillGaps("2024-01-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected only the past row written, got %d", count)
	}

	f, _ := db.GetForecast(past)
	if f.RealPrice == nil {
		t.Error("expected past forecast filled")
	}
	f, _ = db.GetForecast(future)
	if f.RealPrice != nil {
		t.Error("expected future forecast untouched")
	}
}

func TestFillGapsEmptySnapshot(t *testing.T) {
	db := openTestDB(t)
	count, err := New(db).FillGaps("2024-01-31")
	if err != nil {
		t.Fatalf("expected no error on empty snapshot, got %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 rows, got %d", count)
	}
}
