package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"pricewatch/internal/aggregate"
	"pricewatch/internal/config"
	"pricewatch/internal/database"
	"pricewatch/internal/evaluate"
	"pricewatch/internal/forecast"
	"pricewatch/internal/pipeline"
	"pricewatch/internal/reconcile"
	"pricewatch/internal/schedule"
	"pricewatch/internal/scrape"
	"pricewatch/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "pricewatch",
	Short:   "Product price monitoring and forecasting",
	Long:    "Pricewatch scrapes product pages, forecasts prices, reconciles predictions against observations, and maintains a reporting fact table.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(productsCmd)
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(forecastCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(fillCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(aggregateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("pricewatch", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/pricewatch/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure scrape times and the forecast horizon.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Today: %s\n\n", database.Today())
		fmt.Println("Catalog:")
		fmt.Printf("  Products: %d\n", stats.Products)
		fmt.Printf("  Active: %d\n", stats.ActiveProducts)
		fmt.Println("\nPrices:")
		fmt.Printf("  Observations: %d\n", stats.Observations)
		fmt.Printf("  Forecasts: %d\n", stats.Forecasts)
		fmt.Printf("  Awaiting real price: %d\n", stats.UnresolvedForecasts)
		fmt.Println("\nReporting:")
		fmt.Printf("  Products with error metrics: %d\n", stats.ProductsWithMetrics)
		fmt.Printf("  Fact rows: %d\n", stats.FactRows)
		return nil
	},
}

// --- products commands ---

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "Manage the product catalog",
}

var productsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tracked products",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		products, err := db.GetAllProducts()
		if err != nil {
			return err
		}

		if len(products) == 0 {
			fmt.Println("No products tracked. Add one with: pricewatch products add <url> <name>")
			return nil
		}

		fmt.Println("Tracked products:")
		fmt.Println()
		for _, p := range products {
			icon := " "
			if p.IsActive {
				icon = "*"
			}
			fmt.Printf("  [%d] %s %s\n", p.ID, icon, p.Name)
			fmt.Printf("        %s\n", p.URL)
		}
		return nil
	},
}

var productsAddCmd = &cobra.Command{
	Use:   "add [url] [name]",
	Short: "Add a product to track",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := db.InsertProduct(args[0], args[1])
		if err != nil {
			return err
		}
		if id == 0 {
			fmt.Println("Product with that URL is already tracked.")
			return nil
		}
		fmt.Printf("Added product [%d]: %s\n", id, args[1])
		return nil
	},
}

var productsRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a product and its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, product, err := lookupProduct(db, args[0])
		if err != nil {
			return err
		}

		if err := db.DeleteProduct(id); err != nil {
			return err
		}
		fmt.Printf("Removed product [%d]: %s\n", id, product.Name)
		return nil
	},
}

var productsToggleCmd = &cobra.Command{
	Use:   "toggle [id]",
	Short: "Toggle whether a product is scraped",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, product, err := lookupProduct(db, args[0])
		if err != nil {
			return err
		}

		if err := db.ToggleProduct(id); err != nil {
			return err
		}
		newState := "paused"
		if !product.IsActive {
			newState = "active"
		}
		fmt.Printf("Product [%d] %s: %s\n", id, product.Name, newState)
		return nil
	},
}

func init() {
	productsCmd.AddCommand(productsListCmd)
	productsCmd.AddCommand(productsAddCmd)
	productsCmd.AddCommand(productsRemoveCmd)
	productsCmd.AddCommand(productsToggleCmd)
}

func lookupProduct(db *database.DB, arg string) (int64, *database.Product, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid product ID: %s", arg)
	}
	product, err := db.GetProduct(id)
	if err != nil {
		return 0, nil, err
	}
	if product == nil {
		return 0, nil, fmt.Errorf("product %d not found", id)
	}
	return id, product, nil
}

// --- step commands ---

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape all active product pages once",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		scraper := scrape.New(db, scrape.Options{
			UserAgent:   cfg.Scraper.UserAgent,
			MaxAttempts: cfg.Scraper.MaxAttempts,
			RetryDelay:  cfg.Scraper.RetryDelayDuration(),
			Timeout:     cfg.Scraper.TimeoutDuration(),
		})
		result, err := scraper.Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Scraped %d products, %d failed\n", result.Scraped, result.Failed)
		return nil
	},
}

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Train on observed history and forecast upcoming prices",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := forecast.New(db, forecast.Options{
			HorizonDays: cfg.Forecast.HorizonDays,
			MinHistory:  cfg.Forecast.MinHistory,
		}).Run()
		if err != nil {
			return err
		}
		fmt.Printf("Created %d forecasts, skipped %d products with short history\n",
			result.ForecastsCreated, result.ProductsSkipped)
		return nil
	},
}

var reconcileFill bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Resolve forecasts against scraped observations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		rec := reconcile.New(db)
		count, err := rec.Reconcile()
		if err != nil {
			return err
		}
		fmt.Printf("Resolved %d forecasts from observations\n", count)

		if reconcileFill {
			filled, err := rec.FillGaps(database.Today())
			if err != nil {
				return err
			}
			fmt.Printf("Gap-fill rewrote %d forecasts\n", filled)
		}
		return nil
	},
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileFill, "fill", false, "Run the gap-fill pass afterwards")
}

var fillCmd = &cobra.Command{
	Use:   "fill",
	Short: "Interpolate or backfill unresolved past prices",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		count, err := reconcile.New(db).FillGaps(database.Today())
		if err != nil {
			return err
		}
		fmt.Printf("Gap-fill rewrote %d forecasts\n", count)
		return nil
	},
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Recompute per-product error metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		count, err := evaluate.New(db).Evaluate()
		if err != nil {
			return err
		}
		fmt.Printf("Metrics written for %d products\n", count)
		return nil
	},
}

var (
	aggregateFrom string
	aggregateTo   string
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Merge stores into the reporting fact table",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		agg := aggregate.New(db, cfg.Aggregate.WindowDays)

		var count int
		if aggregateFrom == "" && aggregateTo == "" {
			count, err = agg.AggregateTrailing(database.Today())
		} else {
			var start, end database.Day
			if start, err = database.ParseDay(aggregateFrom); err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			if end, err = database.ParseDay(aggregateTo); err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}
			count, err = agg.Aggregate(start, end)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Fact table updated: %d rows\n", count)
		return nil
	},
}

func init() {
	aggregateCmd.Flags().StringVar(&aggregateFrom, "from", "", "Window start (YYYY-MM-DD)")
	aggregateCmd.Flags().StringVar(&aggregateTo, "to", "", "Window end (YYYY-MM-DD)")
}

// --- run command ---

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: scrape -> forecast -> reconcile -> fill -> evaluate -> aggregate",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe := pipeline.New(cfg, db)
		today := database.Today()

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun(today)
		} else {
			result = pipe.Run(cmd.Context(), today)
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/6: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if result.Failed() {
			return fmt.Errorf("pipeline finished with errors")
		}
		if !dryRun {
			fmt.Println("\nPipeline complete! Run 'pricewatch serve' to query the results.")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
}

// --- schedule command ---

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run scrapes and the daily pipeline at their configured times",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		scraper := scrape.New(db, scrape.Options{
			UserAgent:   cfg.Scraper.UserAgent,
			MaxAttempts: cfg.Scraper.MaxAttempts,
			RetryDelay:  cfg.Scraper.RetryDelayDuration(),
			Timeout:     cfg.Scraper.TimeoutDuration(),
		})
		pipe := pipeline.New(cfg, db)

		sched := schedule.New(
			schedule.Job{
				Name:  "scrape",
				Times: cfg.Schedule.ScrapeTimes,
				Run: func(ctx context.Context) {
					if _, err := scraper.Run(ctx); err != nil {
						log.Printf("Scheduled scrape failed: %v", err)
					}
				},
			},
			schedule.Job{
				Name:  "pipeline",
				Times: []string{cfg.Schedule.PipelineTime},
				Run: func(ctx context.Context) {
					result := pipe.Run(ctx, database.Today())
					for _, step := range result.Steps {
						if step.Err != nil {
							log.Printf("Scheduled pipeline step %s failed: %v", step.Name, step.Err)
						}
					}
				},
			},
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Println("Scheduler running. Press Ctrl+C to stop.")
		err = sched.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "pricewatch.db")
	return database.Open(dbPath)
}
