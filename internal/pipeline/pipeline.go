package pipeline

import (
	"context"
	"fmt"
	"log"

	"pricewatch/internal/aggregate"
	"pricewatch/internal/config"
	"pricewatch/internal/database"
	"pricewatch/internal/evaluate"
	"pricewatch/internal/forecast"
	"pricewatch/internal/reconcile"
	"pricewatch/internal/scrape"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	Day   database.Day
	Steps []StepResult
}

// Failed reports whether any step errored.
func (r *Result) Failed() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return true
		}
	}
	return false
}

// Pipeline orchestrates the 6-step daily run: scrape, forecast,
// reconcile, fill, evaluate, aggregate. Each step feeds the next
// through the stores.
type Pipeline struct {
	cfg *config.Config
	db  *database.DB
}

// New creates a new pipeline.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	return &Pipeline{cfg: cfg, db: db}
}

// Run executes the full 6-step pipeline for the given day.
func (p *Pipeline) Run(ctx context.Context, today database.Day) *Result {
	r := &Result{Day: today}

	// Step 1: Scrape. A failure here still leaves earlier observations
	// usable, so the run continues.
	r.Steps = append(r.Steps, p.runScrape(ctx))

	// Step 2: Forecast
	r.Steps = append(r.Steps, p.runForecast())

	// Step 3: Reconcile
	step := p.runReconcile()
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	// Step 4: Fill gaps
	step = p.runFill(today)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	// Step 5: Evaluate
	r.Steps = append(r.Steps, p.runEvaluate())

	// Step 6: Aggregate
	r.Steps = append(r.Steps, p.runAggregate(today))

	return r
}

// DryRun shows what would be done without executing.
func (p *Pipeline) DryRun(today database.Day) *Result {
	r := &Result{Day: today}

	products, _ := p.db.GetActiveProducts()
	r.Steps = append(r.Steps, StepResult{
		Name:    "Scrape",
		Summary: fmt.Sprintf("[dry-run] %d active products to scrape", len(products)),
	})

	history, _ := p.db.GetObservationHistory()
	r.Steps = append(r.Steps, StepResult{
		Name:    "Forecast",
		Summary: fmt.Sprintf("[dry-run] %d observations available for training", len(history)),
	})

	unresolved, _ := p.db.GetUnresolvedForecasts()
	r.Steps = append(r.Steps, StepResult{
		Name:    "Reconcile",
		Summary: fmt.Sprintf("[dry-run] %d forecasts waiting for real prices", len(unresolved)),
	})

	snapshot, _ := p.db.GetForecastsThrough(today)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Fill",
		Summary: fmt.Sprintf("[dry-run] %d forecasts in the fill snapshot", len(snapshot)),
	})

	resolved, _ := p.db.GetResolvedForecasts()
	r.Steps = append(r.Steps, StepResult{
		Name:    "Evaluate",
		Summary: fmt.Sprintf("[dry-run] %d resolved forecasts to score", len(resolved)),
	})

	start := today.AddDays(-p.cfg.Aggregate.WindowDays)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Aggregate",
		Summary: fmt.Sprintf("[dry-run] Would aggregate window %s..%s", start, today),
	})

	return r
}

func (p *Pipeline) runScrape(ctx context.Context) StepResult {
	log.Println("Step 1/6: Scraping product pages...")
	scraper := scrape.New(p.db, scrape.Options{
		UserAgent:   p.cfg.Scraper.UserAgent,
		MaxAttempts: p.cfg.Scraper.MaxAttempts,
		RetryDelay:  p.cfg.Scraper.RetryDelayDuration(),
		Timeout:     p.cfg.Scraper.TimeoutDuration(),
	})
	result, err := scraper.Run(ctx)
	if err != nil {
		return StepResult{Name: "Scrape", Err: err}
	}
	return StepResult{
		Name:    "Scrape",
		Summary: fmt.Sprintf("Scraped %d products, %d failed", result.Scraped, result.Failed),
	}
}

func (p *Pipeline) runForecast() StepResult {
	log.Println("Step 2/6: Forecasting prices...")
	forecaster := forecast.New(p.db, forecast.Options{
		HorizonDays: p.cfg.Forecast.HorizonDays,
		MinHistory:  p.cfg.Forecast.MinHistory,
	})
	result, err := forecaster.Run()
	if err != nil {
		return StepResult{Name: "Forecast", Err: err}
	}
	return StepResult{
		Name:    "Forecast",
		Summary: fmt.Sprintf("Created %d forecasts, %d products skipped", result.ForecastsCreated, result.ProductsSkipped),
	}
}

func (p *Pipeline) runReconcile() StepResult {
	log.Println("Step 3/6: Reconciling forecasts with observations...")
	count, err := reconcile.New(p.db).Reconcile()
	if err != nil {
		return StepResult{Name: "Reconcile", Err: err}
	}
	return StepResult{
		Name:    "Reconcile",
		Summary: fmt.Sprintf("Resolved %d forecasts from observations", count),
	}
}

func (p *Pipeline) runFill(today database.Day) StepResult {
	log.Println("Step 4/6: Filling remaining price gaps...")
	count, err := reconcile.New(p.db).FillGaps(today)
	if err != nil {
		return StepResult{Name: "Fill", Err: err}
	}
	return StepResult{
		Name:    "Fill",
		Summary: fmt.Sprintf("Rewrote %d forecasts", count),
	}
}

func (p *Pipeline) runEvaluate() StepResult {
	log.Println("Step 5/6: Evaluating model accuracy...")
	count, err := evaluate.New(p.db).Evaluate()
	if err != nil {
		return StepResult{Name: "Evaluate", Err: err}
	}
	return StepResult{
		Name:    "Evaluate",
		Summary: fmt.Sprintf("Metrics written for %d products", count),
	}
}

func (p *Pipeline) runAggregate(today database.Day) StepResult {
	log.Println("Step 6/6: Updating fact table...")
	count, err := aggregate.New(p.db, p.cfg.Aggregate.WindowDays).AggregateTrailing(today)
	if err != nil {
		return StepResult{Name: "Aggregate", Err: err}
	}
	return StepResult{
		Name:    "Aggregate",
		Summary: fmt.Sprintf("Fact table updated: %d rows", count),
	}
}
