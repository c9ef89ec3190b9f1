package database

import (
	"database/sql"
)

// UpsertErrorMetrics overwrites the accuracy row for each product in a
// single transaction. model_errors is never historized: one row per
// product, recomputed on every evaluation run.
func (db *DB) UpsertErrorMetrics(metrics []ErrorMetric) (int, error) {
	if len(metrics) == 0 {
		return 0, nil
	}
	err := db.withTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(
			`INSERT INTO model_errors (product_id, mae, rmse, sample_count, updated_at)
			VALUES (?, ?, ?, ?, datetime('now'))
			ON CONFLICT(product_id) DO UPDATE SET
				mae = excluded.mae,
				rmse = excluded.rmse,
				sample_count = excluded.sample_count,
				updated_at = excluded.updated_at`,
		)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, m := range metrics {
			if _, err := stmt.Exec(m.ProductID, m.MAE, m.RMSE, m.SampleCount); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(metrics), nil
}

// GetErrorMetric returns the accuracy row for a product, nil if the
// product has never been evaluated.
func (db *DB) GetErrorMetric(productID int64) (*ErrorMetric, error) {
	row := db.conn.QueryRow(
		"SELECT product_id, mae, rmse, sample_count, updated_at FROM model_errors WHERE product_id = ?",
		productID,
	)
	var m ErrorMetric
	err := row.Scan(&m.ProductID, &m.MAE, &m.RMSE, &m.SampleCount, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetAllErrorMetrics returns every product's accuracy row.
func (db *DB) GetAllErrorMetrics() ([]ErrorMetric, error) {
	rows, err := db.conn.Query(
		"SELECT product_id, mae, rmse, sample_count, updated_at FROM model_errors ORDER BY product_id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metrics []ErrorMetric
	for rows.Next() {
		var m ErrorMetric
		if err := rows.Scan(&m.ProductID, &m.MAE, &m.RMSE, &m.SampleCount, &m.UpdatedAt); err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}
