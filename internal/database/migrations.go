package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS products (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT UNIQUE NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    is_active INTEGER DEFAULT 1,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS observations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    product_id INTEGER NOT NULL,
    day TEXT NOT NULL,
    price REAL NOT NULL,
    rating REAL,
    title TEXT,
    url TEXT,
    scraped_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS forecasts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    product_id INTEGER NOT NULL,
    day TEXT NOT NULL,
    predicted_price REAL NOT NULL,
    real_price REAL,
    price_source TEXT CHECK(price_source IN ('observed', 'interpolated', 'predicted')),
    day_of_month INTEGER DEFAULT 0,
    month INTEGER DEFAULT 0,
    day_of_week INTEGER DEFAULT 0,
    days_since_start INTEGER DEFAULT 0,
    rating REAL DEFAULT 0,
    moving_avg_3 REAL DEFAULT 0,
    moving_avg_7 REAL DEFAULT 0,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS model_errors (
    product_id INTEGER PRIMARY KEY,
    mae REAL NOT NULL,
    rmse REAL NOT NULL,
    sample_count INTEGER DEFAULT 0,
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS fact_prices (
    product_id INTEGER NOT NULL,
    day TEXT NOT NULL,
    real_price REAL,
    predicted_price REAL,
    day_of_month INTEGER,
    month INTEGER,
    day_of_week INTEGER,
    days_since_start INTEGER,
    rating REAL,
    moving_avg_3 REAL,
    moving_avg_7 REAL,
    mae REAL,
    rmse REAL,
    aggregated_at TEXT DEFAULT (datetime('now')),
    PRIMARY KEY (product_id, day)
);

CREATE INDEX IF NOT EXISTS idx_observations_product_day ON observations(product_id, day);
CREATE INDEX IF NOT EXISTS idx_forecasts_product_day ON forecasts(product_id, day);
CREATE INDEX IF NOT EXISTS idx_forecasts_unresolved ON forecasts(real_price) WHERE real_price IS NULL;
CREATE INDEX IF NOT EXISTS idx_fact_prices_day ON fact_prices(day);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
