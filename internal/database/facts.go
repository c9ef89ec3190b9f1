package database

import (
	"database/sql"
)

// AggregateFacts merges forecasts, observations, and error metrics into
// one fact row per (product, day) inside the window. Duplicate rows on
// either side of a join collapse through the MAX() merge, keeping the
// most complete non-null value per column. Re-running the same window is
// safe: rows upsert on the (product_id, day) key.
func (db *DB) AggregateFacts(start, end Day) (int, error) {
	var affected int64
	err := db.withTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(
			`INSERT INTO fact_prices (
				product_id, day, real_price, predicted_price,
				day_of_month, month, day_of_week, days_since_start,
				rating, moving_avg_3, moving_avg_7, mae, rmse, aggregated_at
			)
			SELECT
				f.product_id,
				f.day,
				MAX(COALESCE(f.real_price, o.price)) AS real_price,
				MAX(f.predicted_price) AS predicted_price,
				MAX(f.day_of_month) AS day_of_month,
				MAX(f.month) AS month,
				MAX(f.day_of_week) AS day_of_week,
				MAX(f.days_since_start) AS days_since_start,
				MAX(COALESCE(f.rating, o.rating)) AS rating,
				MAX(f.moving_avg_3) AS moving_avg_3,
				MAX(f.moving_avg_7) AS moving_avg_7,
				MAX(e.mae) AS mae,
				MAX(e.rmse) AS rmse,
				datetime('now')
			FROM forecasts f
			LEFT JOIN observations o
				ON o.product_id = f.product_id AND o.day = f.day
			LEFT JOIN model_errors e
				ON e.product_id = f.product_id
			WHERE f.day BETWEEN ? AND ?
			GROUP BY f.product_id, f.day
			ON CONFLICT(product_id, day) DO UPDATE SET
				real_price = excluded.real_price,
				predicted_price = excluded.predicted_price,
				day_of_month = excluded.day_of_month,
				month = excluded.month,
				day_of_week = excluded.day_of_week,
				days_since_start = excluded.days_since_start,
				rating = excluded.rating,
				moving_avg_3 = excluded.moving_avg_3,
				moving_avg_7 = excluded.moving_avg_7,
				mae = excluded.mae,
				rmse = excluded.rmse,
				aggregated_at = excluded.aggregated_at`,
			string(start), string(end),
		)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// GetFacts returns fact rows in [start, end], optionally limited to one
// product, ordered by product and day.
func (db *DB) GetFacts(productID *int64, start, end Day) ([]FactRow, error) {
	query := `SELECT product_id, day, real_price, predicted_price,
		day_of_month, month, day_of_week, days_since_start,
		rating, moving_avg_3, moving_avg_7, mae, rmse, aggregated_at
		FROM fact_prices WHERE day BETWEEN ? AND ?`
	args := []any{string(start), string(end)}
	if productID != nil {
		query += " AND product_id = ?"
		args = append(args, *productID)
	}
	query += " ORDER BY product_id, day"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []FactRow
	for rows.Next() {
		var f FactRow
		var day string
		var dayOfMonth, month, dayOfWeek, daysSinceStart sql.NullInt64
		var rating, movingAvg3, movingAvg7 sql.NullFloat64
		if err := rows.Scan(&f.ProductID, &day, &f.RealPrice, &f.PredictedPrice,
			&dayOfMonth, &month, &dayOfWeek, &daysSinceStart,
			&rating, &movingAvg3, &movingAvg7, &f.MAE, &f.RMSE, &f.AggregatedAt); err != nil {
			return nil, err
		}
		f.Day = Day(day)
		f.Features = FeatureSnapshot{
			DayOfMonth:     int(dayOfMonth.Int64),
			Month:          int(month.Int64),
			DayOfWeek:      int(dayOfWeek.Int64),
			DaysSinceStart: int(daysSinceStart.Int64),
			Rating:         rating.Float64,
			MovingAvg3:     movingAvg3.Float64,
			MovingAvg7:     movingAvg7.Float64,
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
