package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/storefront/internal/catalog"
)

type productRow struct {
	ID          string  `db:"id"`
	Name        string  `db:"name"`
	Price       float64 `db:"price"`
	Description string  `db:"description"`
	ImageURL    string  `db:"image_url"`
	InStock     bool    `db:"in_stock"`
}

func (r productRow) product() catalog.Product {
	return catalog.Product{
		ID:          r.ID,
		Name:        r.Name,
		Price:       r.Price,
		Description: r.Description,
		ImageURL:    r.ImageURL,
		InStock:     r.InStock,
	}
}

func rowFrom(p catalog.Product) productRow {
	return productRow{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		InStock:     p.InStock,
	}
}

// ListProducts returns every product in insertion order.
// Returns an empty slice (not nil) when the table is empty.
func (s *Store) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	var rows []productRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, price, description, image_url, in_stock
		FROM products
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	out := make([]catalog.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.product())
	}
	return out, nil
}

// GetProduct reads one product. Returns catalog.ErrNotFound if absent.
func (s *Store) GetProduct(ctx context.Context, id string) (catalog.Product, error) {
	var r productRow
	err := s.db.GetContext(ctx, &r, `
		SELECT id, name, price, description, image_url, in_stock
		FROM products WHERE id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Product{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return r.product(), nil
}

// InsertProduct appends a new product.
func (s *Store) InsertProduct(ctx context.Context, p catalog.Product) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO products (id, name, price, description, image_url, in_stock)
		VALUES (:id, :name, :price, :description, :image_url, :in_stock)
	`, rowFrom(p))
	if err != nil {
		return fmt.Errorf("insert product %s: %w", p.ID, err)
	}
	return nil
}

// UpsertProduct writes p under its id. An existing product keeps its
// position in the delivery order.
func (s *Store) UpsertProduct(ctx context.Context, p catalog.Product) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO products (id, name, price, description, image_url, in_stock)
		VALUES (:id, :name, :price, :description, :image_url, :in_stock)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			price = excluded.price,
			description = excluded.description,
			image_url = excluded.image_url,
			in_stock = excluded.in_stock
	`, rowFrom(p))
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	return nil
}

// UpdateProduct applies patch to the stored product in one transaction.
// Returns catalog.ErrNotFound if absent.
func (s *Store) UpdateProduct(ctx context.Context, id string, patch catalog.Patch) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	var r productRow
	err = tx.GetContext(ctx, &r, `
		SELECT id, name, price, description, image_url, in_stock
		FROM products WHERE id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read product %s: %w", id, err)
	}

	updated := rowFrom(patch.Apply(r.product()))
	_, err = tx.NamedExecContext(ctx, `
		UPDATE products SET
			name = :name,
			price = :price,
			description = :description,
			image_url = :image_url,
			in_stock = :in_stock
		WHERE id = :id
	`, updated)
	if err != nil {
		return fmt.Errorf("update product %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

// DeleteProduct removes a product. Returns catalog.ErrNotFound if absent.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	if n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}
