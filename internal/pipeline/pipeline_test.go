package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"pricewatch/internal/config"
	"pricewatch/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedHistory inserts an inactive product with a week of flat readings so
// every step after scraping has work to do without any network access.
func seedHistory(t *testing.T, db *database.DB) int64 {
	t.Helper()
	pid, err := db.InsertProduct("https://example.com/dp/B000TEST", "Test Product")
	if err != nil {
		t.Fatalf("inserting product: %v", err)
	}
	if err := db.ToggleProduct(pid); err != nil {
		t.Fatalf("deactivating product: %v", err)
	}
	for i := 1; i <= 7; i++ {
		day := database.Day(fmt.Sprintf("2024-01-%02d", i))
		_, err := db.InsertObservation(database.Observation{
			ProductID: pid,
			Day:       day,
			Price:     50,
			ScrapedAt: string(day) + " 06:00:00",
		})
		if err != nil {
			t.Fatalf("inserting observation: %v", err)
		}
	}
	return pid
}

func TestRunExecutesAllSteps(t *testing.T) {
	db := openTestDB(t)
	pid := seedHistory(t, db)
	today := database.Day("2024-01-10")

	result := New(config.Default(), db).Run(context.Background(), today)

	if len(result.Steps) != 6 {
		t.Fatalf("expected 6 steps, got %d", len(result.Steps))
	}
	if result.Failed() {
		for _, s := range result.Steps {
			if s.Err != nil {
				t.Errorf("step %s failed: %v", s.Name, s.Err)
			}
		}
		t.Fatal("pipeline run failed")
	}

	// The forecaster should cover the 3-day horizon after the last
	// observation, and the fill pass resolves all of them since none has
	// a matching observation.
	unresolved, err := db.GetUnresolvedForecasts()
	if err != nil {
		t.Fatalf("getting unresolved forecasts: %v", err)
	}
	if len(unresolved) != 0 {
		t.Errorf("expected all forecasts resolved, %d remain", len(unresolved))
	}
	resolved, err := db.GetResolvedForecasts()
	if err != nil {
		t.Fatalf("getting resolved forecasts: %v", err)
	}
	if len(resolved) != 3 {
		t.Errorf("expected 3 resolved forecasts, got %d", len(resolved))
	}

	metric, err := db.GetErrorMetric(pid)
	if err != nil {
		t.Fatalf("getting error metric: %v", err)
	}
	if metric == nil {
		t.Error("expected an error metric after evaluation")
	}

	// Trailing window of 1 day covers Jan 9 and Jan 10.
	facts, err := db.GetFacts(nil, today.AddDays(-1), today)
	if err != nil {
		t.Fatalf("getting facts: %v", err)
	}
	if len(facts) != 2 {
		t.Errorf("expected 2 fact rows, got %d", len(facts))
	}
}

func TestRunIsRepeatable(t *testing.T) {
	db := openTestDB(t)
	seedHistory(t, db)
	today := database.Day("2024-01-10")
	p := New(config.Default(), db)

	p.Run(context.Background(), today)
	result := p.Run(context.Background(), today)
	if result.Failed() {
		t.Fatal("second run failed")
	}

	resolved, err := db.GetResolvedForecasts()
	if err != nil {
		t.Fatalf("getting resolved forecasts: %v", err)
	}
	if len(resolved) != 3 {
		t.Errorf("expected 3 forecasts after rerun, got %d", len(resolved))
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	db := openTestDB(t)
	seedHistory(t, db)

	result := New(config.Default(), db).DryRun(database.Day("2024-01-10"))

	if len(result.Steps) != 6 {
		t.Fatalf("expected 6 steps, got %d", len(result.Steps))
	}
	for _, s := range result.Steps {
		if s.Err != nil {
			t.Errorf("dry-run step %s errored: %v", s.Name, s.Err)
		}
		if s.Summary == "" {
			t.Errorf("dry-run step %s has no summary", s.Name)
		}
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("getting stats: %v", err)
	}
	if stats.Forecasts != 0 || stats.FactRows != 0 {
		t.Errorf("dry run wrote data: %d forecasts, %d fact rows", stats.Forecasts, stats.FactRows)
	}
}

func TestResultFailed(t *testing.T) {
	r := &Result{Steps: []StepResult{{Name: "Scrape"}, {Name: "Forecast"}}}
	if r.Failed() {
		t.Error("expected success with no step errors")
	}
	r.Steps = append(r.Steps, StepResult{Name: "Reconcile", Err: fmt.Errorf("store closed")})
	if !r.Failed() {
		t.Error("expected failure with a step error")
	}
}
