package database

import (
	"database/sql"
	"fmt"
	"strings"
)

// InsertObservation appends a scraped reading. Observations are
// append-only: the same (product, day) key may accumulate rows.
func (db *DB) InsertObservation(o Observation) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO observations (product_id, day, price, rating, title, url, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ProductID, string(o.Day), o.Price, o.Rating, o.Title, o.URL, o.ScrapedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetObservationHistory returns every observation ordered by product,
// day, and scrape time. The forecaster builds its per-product feature
// series from this.
func (db *DB) GetObservationHistory() ([]Observation, error) {
	return db.queryObservations(
		`SELECT id, product_id, day, price, rating, title, url, scraped_at
		FROM observations ORDER BY product_id, day, scraped_at, id`,
	)
}

// GetObservationsForProducts returns observations for the given products
// in (product, day, scraped_at, id) order. The stable time ordering makes
// the reconciler's last-write-wins duplicate policy deterministic.
func (db *DB) GetObservationsForProducts(productIDs []int64) ([]Observation, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(productIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(productIDs))
	for i, id := range productIDs {
		args[i] = id
	}
	return db.queryObservations(
		fmt.Sprintf(`SELECT id, product_id, day, price, rating, title, url, scraped_at
		FROM observations WHERE product_id IN (%s)
		ORDER BY product_id, day, scraped_at, id`, placeholders),
		args...,
	)
}

func (db *DB) queryObservations(query string, args ...any) ([]Observation, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanObservations(rows)
}

func scanObservations(rows *sql.Rows) ([]Observation, error) {
	var observations []Observation
	for rows.Next() {
		var o Observation
		var day string
		if err := rows.Scan(&o.ID, &o.ProductID, &day, &o.Price, &o.Rating,
			&o.Title, &o.URL, &o.ScrapedAt); err != nil {
			return nil, err
		}
		o.Day = Day(day)
		observations = append(observations, o)
	}
	return observations, rows.Err()
}
