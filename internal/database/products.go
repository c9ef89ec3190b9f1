package database

import (
	"database/sql"
)

// InsertProduct adds a catalog entry. Returns the ID on success, 0 if the
// URL is already tracked.
func (db *DB) InsertProduct(url, name string) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO products (url, name) VALUES (?, ?)`, url, name,
	)
	if err != nil {
		// Duplicate URL constraint
		return 0, nil //nolint: nilerr
	}
	return result.LastInsertId()
}

// GetAllProducts returns every catalog entry.
func (db *DB) GetAllProducts() ([]Product, error) {
	return db.queryProducts("SELECT id, url, name, is_active, created_at FROM products ORDER BY id")
}

// GetActiveProducts returns only the products the scraper should visit.
func (db *DB) GetActiveProducts() ([]Product, error) {
	return db.queryProducts("SELECT id, url, name, is_active, created_at FROM products WHERE is_active = 1 ORDER BY id")
}

// GetProduct returns a single catalog entry by ID, nil if absent.
func (db *DB) GetProduct(productID int64) (*Product, error) {
	row := db.conn.QueryRow(
		"SELECT id, url, name, is_active, created_at FROM products WHERE id = ?", productID,
	)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ToggleProduct flips a product's active state.
func (db *DB) ToggleProduct(productID int64) error {
	_, err := db.conn.Exec(
		"UPDATE products SET is_active = NOT is_active WHERE id = ?", productID,
	)
	return err
}

// DeleteProduct removes a catalog entry. Existing observations and
// forecasts for the product are kept.
func (db *DB) DeleteProduct(productID int64) error {
	_, err := db.conn.Exec("DELETE FROM products WHERE id = ?", productID)
	return err
}

func (db *DB) queryProducts(query string, args ...any) ([]Product, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		var active int
		if err := rows.Scan(&p.ID, &p.URL, &p.Name, &active, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.IsActive = active != 0
		products = append(products, p)
	}
	return products, rows.Err()
}

func scanProduct(row *sql.Row) (*Product, error) {
	var p Product
	var active int
	if err := row.Scan(&p.ID, &p.URL, &p.Name, &active, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.IsActive = active != 0
	return &p, nil
}
