package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

func get(t *testing.T, srv *Server, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", url, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStatusRoute(t *testing.T) {
	db := openTestDB(t)
	db.InsertProduct("https://example.com/dp/B0001", "Widget")

	rec := get(t, New(db), "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var status map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if status["products"] != 1 {
		t.Errorf("expected 1 product, got %d", status["products"])
	}
	if status["active_products"] != 1 {
		t.Errorf("expected 1 active product, got %d", status["active_products"])
	}
}

func TestProductsRoute(t *testing.T) {
	db := openTestDB(t)
	pid, _ := db.InsertProduct("https://example.com/dp/B0001", "Widget")
	db.ToggleProduct(pid)

	rec := get(t, New(db), "/api/products")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var products []productView
	if err := json.Unmarshal(rec.Body.Bytes(), &products); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(products))
	}
	if products[0].Name != "Widget" || products[0].IsActive {
		t.Errorf("unexpected product: %+v", products[0])
	}
}

func TestMetricsRoute(t *testing.T) {
	db := openTestDB(t)
	pid, _ := db.InsertProduct("https://example.com/dp/B0001", "Widget")
	db.UpsertErrorMetrics([]database.ErrorMetric{
		{ProductID: pid, MAE: 1.5, RMSE: 2.25, SampleCount: 4},
	})

	rec := get(t, New(db), "/api/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var metrics []metricView
	if err := json.Unmarshal(rec.Body.Bytes(), &metrics); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(metrics) != 1 {
		t.Fatalf("expected 1 metric, got %d", len(metrics))
	}
	if metrics[0].MAE != 1.5 || metrics[0].RMSE != 2.25 || metrics[0].SampleCount != 4 {
		t.Errorf("unexpected metric: %+v", metrics[0])
	}
}

func TestFactsRouteFilters(t *testing.T) {
	db := openTestDB(t)
	pid, _ := db.InsertProduct("https://example.com/dp/B0001", "Widget")
	other, _ := db.InsertProduct("https://example.com/dp/B0002", "Gadget")
	for _, seed := range []struct {
		pid int64
		day database.Day
	}{
		{pid, "2024-01-05"},
		{pid, "2024-01-06"},
		{other, "2024-01-05"},
	} {
		real := 19.99
		src := database.SourceObserved
		db.InsertForecast(database.Forecast{
			ProductID:      seed.pid,
			Day:            seed.day,
			PredictedPrice: 20.50,
			RealPrice:      &real,
			PriceSource:    &src,
		})
	}
	if _, err := db.AggregateFacts("2024-01-01", "2024-01-31"); err != nil {
		t.Fatalf("aggregating: %v", err)
	}

	rec := get(t, New(db), "/api/facts")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var facts []factView
	if err := json.Unmarshal(rec.Body.Bytes(), &facts); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(facts) != 3 {
		t.Errorf("expected 3 fact rows unfiltered, got %d", len(facts))
	}

	rec = get(t, New(db), "/api/facts?product=1&from=2024-01-06&to=2024-01-06")
	facts = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &facts); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("expected 1 filtered fact row, got %d", len(facts))
	}
	if facts[0].Day != "2024-01-06" || facts[0].RealPrice == nil || *facts[0].RealPrice != 19.99 {
		t.Errorf("unexpected fact: %+v", facts[0])
	}
}

func TestFactsRouteBadParams(t *testing.T) {
	srv := New(openTestDB(t))

	for _, url := range []string{
		"/api/facts?product=abc",
		"/api/facts?from=01-05-2024",
		"/api/facts?to=notaday",
	} {
		if rec := get(t, srv, url); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", url, rec.Code)
		}
	}
}

func TestUnknownRoute(t *testing.T) {
	if rec := get(t, New(openTestDB(t)), "/api/nothing"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
