package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const vendorColumns = `id, name, city, categories, verified, status, rating_average, rating_count, whatsapp_number, created_at, updated_at`

// ListInStockProducts returns up to limit in-stock products with their
// owning vendor joined in.
func (r *Repository) ListInStockProducts(ctx context.Context, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
SELECT p.id, p.vendor_id, p.name, p.category, p.price, p.description, p.keywords, p.availability, p.condition, p.created_at, p.updated_at,
       v.id, v.name, v.city, v.categories, v.verified, v.status, v.rating_average, v.rating_count, v.whatsapp_number, v.created_at, v.updated_at
FROM products p
JOIN vendors v ON v.id = p.vendor_id
WHERE p.availability = 'in_stock'
ORDER BY p.created_at DESC
LIMIT $1;
`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list in-stock products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		var v Vendor
		if err := rows.Scan(
			&p.ID, &p.VendorID, &p.Name, &p.Category, &p.Price, &p.Description, &p.Keywords, &p.Availability, &p.Condition, &p.CreatedAt, &p.UpdatedAt,
			&v.ID, &v.Name, &v.City, &v.Categories, &v.Verified, &v.Status, &v.RatingAverage, &v.RatingCount, &v.WhatsAppNumber, &v.CreatedAt, &v.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.Vendor = &v
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// ListActiveVendors returns up to limit active verified vendors, optionally
// narrowed by a case-insensitive partial city match.
func (r *Repository) ListActiveVendors(ctx context.Context, city string, limit int) ([]Vendor, error) {
	if limit <= 0 {
		limit = 10
	}

	q := `
SELECT ` + vendorColumns + `
FROM vendors
WHERE status = 'active' AND verified = TRUE
`
	args := []any{limit}
	if city != "" {
		q += ` AND city ILIKE '%' || $2 || '%'`
		args = append(args, city)
	}
	q += `
ORDER BY created_at DESC
LIMIT $1;
`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list active vendors: %w", err)
	}
	defer rows.Close()
	return scanVendors(rows)
}

// ListVendorSample returns a bounded vendor sample for the dashboard,
// regardless of status.
func (r *Repository) ListVendorSample(ctx context.Context, limit int) ([]Vendor, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `
SELECT ` + vendorColumns + `
FROM vendors
ORDER BY created_at DESC
LIMIT $1;
`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list vendor sample: %w", err)
	}
	defer rows.Close()
	return scanVendors(rows)
}

// GetVendorByID returns one vendor, nil if absent.
func (r *Repository) GetVendorByID(ctx context.Context, id string) (*Vendor, error) {
	q := `SELECT ` + vendorColumns + ` FROM vendors WHERE id = $1 LIMIT 1;`
	row := r.pool.QueryRow(ctx, q, id)
	var v Vendor
	err := row.Scan(&v.ID, &v.Name, &v.City, &v.Categories, &v.Verified, &v.Status, &v.RatingAverage, &v.RatingCount, &v.WhatsAppNumber, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vendor: %w", err)
	}
	return &v, nil
}

// InsertVendor creates a vendor row and returns it with generated fields.
func (r *Repository) InsertVendor(ctx context.Context, v Vendor) (*Vendor, error) {
	const q = `
INSERT INTO vendors (name, city, categories, verified, status, rating_average, rating_count, whatsapp_number)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, created_at, updated_at;
`
	err := r.pool.QueryRow(ctx, q,
		v.Name, v.City, v.Categories, v.Verified, v.Status, v.RatingAverage, v.RatingCount, v.WhatsAppNumber,
	).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert vendor: %w", err)
	}
	return &v, nil
}

// UpdateVendor rewrites a vendor row.
func (r *Repository) UpdateVendor(ctx context.Context, v Vendor) error {
	const q = `
UPDATE vendors
SET name = $2, city = $3, categories = $4, verified = $5, status = $6,
    rating_average = $7, rating_count = $8, whatsapp_number = $9, updated_at = NOW()
WHERE id = $1;
`
	ct, err := r.pool.Exec(ctx, q, v.ID, v.Name, v.City, v.Categories, v.Verified, v.Status, v.RatingAverage, v.RatingCount, v.WhatsAppNumber)
	if err != nil {
		return fmt.Errorf("update vendor: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("vendor not found: %s", v.ID)
	}
	return nil
}

// DeleteVendor removes a vendor row.
func (r *Repository) DeleteVendor(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM vendors WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete vendor: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("vendor not found: %s", id)
	}
	return nil
}

// GetProductByID returns one product, nil if absent.
func (r *Repository) GetProductByID(ctx context.Context, id string) (*Product, error) {
	const q = `
SELECT id, vendor_id, name, category, price, description, keywords, availability, condition, created_at, updated_at
FROM products
WHERE id = $1
LIMIT 1;
`
	row := r.pool.QueryRow(ctx, q, id)
	var p Product
	err := row.Scan(&p.ID, &p.VendorID, &p.Name, &p.Category, &p.Price, &p.Description, &p.Keywords, &p.Availability, &p.Condition, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// InsertProduct creates a product row and returns it with generated fields.
func (r *Repository) InsertProduct(ctx context.Context, p Product) (*Product, error) {
	const q = `
INSERT INTO products (vendor_id, name, category, price, description, keywords, availability, condition)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, created_at, updated_at;
`
	err := r.pool.QueryRow(ctx, q,
		p.VendorID, p.Name, p.Category, p.Price, p.Description, p.Keywords, p.Availability, p.Condition,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	return &p, nil
}

// UpdateProduct rewrites a product row.
func (r *Repository) UpdateProduct(ctx context.Context, p Product) error {
	const q = `
UPDATE products
SET vendor_id = $2, name = $3, category = $4, price = $5, description = $6,
    keywords = $7, availability = $8, condition = $9, updated_at = NOW()
WHERE id = $1;
`
	ct, err := r.pool.Exec(ctx, q, p.ID, p.VendorID, p.Name, p.Category, p.Price, p.Description, p.Keywords, p.Availability, p.Condition)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("product not found: %s", p.ID)
	}
	return nil
}

// DeleteProduct removes a product row.
func (r *Repository) DeleteProduct(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("product not found: %s", id)
	}
	return nil
}

type vendorRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanVendors(rows vendorRows) ([]Vendor, error) {
	var vendors []Vendor
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.City, &v.Categories, &v.Verified, &v.Status, &v.RatingAverage, &v.RatingCount, &v.WhatsAppNumber, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan vendor: %w", err)
		}
		vendors = append(vendors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vendors: %w", err)
	}
	return vendors, nil
}
