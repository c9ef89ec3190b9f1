package database

import (
	"database/sql"
)

// InsertForecast stores a model prediction with real_price unresolved.
func (db *DB) InsertForecast(f Forecast) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO forecasts (product_id, day, predicted_price, real_price, price_source,
			day_of_month, month, day_of_week, days_since_start, rating, moving_avg_3, moving_avg_7)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ProductID, string(f.Day), f.PredictedPrice, f.RealPrice, f.PriceSource,
		f.Features.DayOfMonth, f.Features.Month, f.Features.DayOfWeek,
		f.Features.DaysSinceStart, f.Features.Rating, f.Features.MovingAvg3, f.Features.MovingAvg7,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// HasForecast reports whether any forecast exists for the key. The
// forecaster checks this before inserting so re-runs stay idempotent;
// the table itself carries no unique constraint because pre-existing
// duplicates must be tolerated downstream.
func (db *DB) HasForecast(productID int64, day Day) (bool, error) {
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM forecasts WHERE product_id = ? AND day = ?",
		productID, string(day),
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUnresolvedForecasts returns forecasts still waiting for a real price.
func (db *DB) GetUnresolvedForecasts() ([]Forecast, error) {
	return db.queryForecasts(
		forecastSelect + " WHERE real_price IS NULL ORDER BY product_id, day, id",
	)
}

// GetResolvedForecasts returns forecasts whose real price has been filled,
// the evaluator's input.
func (db *DB) GetResolvedForecasts() ([]Forecast, error) {
	return db.queryForecasts(
		forecastSelect + " WHERE real_price IS NOT NULL ORDER BY product_id, day, id",
	)
}

// GetForecastsThrough returns all forecasts up to and including the given
// day in (product, day, id) order. This is the gap-fill snapshot.
func (db *DB) GetForecastsThrough(day Day) ([]Forecast, error) {
	return db.queryForecasts(
		forecastSelect+" WHERE day <= ? ORDER BY product_id, day, id", string(day),
	)
}

// GetForecast returns a single forecast by ID, nil if absent.
func (db *DB) GetForecast(forecastID int64) (*Forecast, error) {
	forecasts, err := db.queryForecasts(forecastSelect+" WHERE id = ?", forecastID)
	if err != nil {
		return nil, err
	}
	if len(forecasts) == 0 {
		return nil, nil
	}
	return &forecasts[0], nil
}

// RealPriceUpdate resolves one forecast's real price.
type RealPriceUpdate struct {
	ForecastID int64
	RealPrice  float64
	Source     string
}

// ApplyRealPrices writes a batch of real-price resolutions in a single
// transaction. On any error the whole batch rolls back and zero rows
// are reported.
func (db *DB) ApplyRealPrices(updates []RealPriceUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	err := db.withTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(
			"UPDATE forecasts SET real_price = ?, price_source = ? WHERE id = ?",
		)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, u := range updates {
			if _, err := stmt.Exec(u.RealPrice, u.Source, u.ForecastID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(updates), nil
}

const forecastSelect = `SELECT id, product_id, day, predicted_price, real_price, price_source,
	day_of_month, month, day_of_week, days_since_start, rating, moving_avg_3, moving_avg_7, created_at
	FROM forecasts`

func (db *DB) queryForecasts(query string, args ...any) ([]Forecast, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var forecasts []Forecast
	for rows.Next() {
		var f Forecast
		var day string
		if err := rows.Scan(&f.ID, &f.ProductID, &day, &f.PredictedPrice, &f.RealPrice,
			&f.PriceSource, &f.Features.DayOfMonth, &f.Features.Month, &f.Features.DayOfWeek,
			&f.Features.DaysSinceStart, &f.Features.Rating, &f.Features.MovingAvg3,
			&f.Features.MovingAvg7, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.Day = Day(day)
		forecasts = append(forecasts, f)
	}
	return forecasts, rows.Err()
}
