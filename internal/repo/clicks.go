package repo

import (
	"context"
	"fmt"
	"time"
)

// InsertVendorClick appends one vendor click row.
func (r *Repository) InsertVendorClick(ctx context.Context, click VendorClick) error {
	const q = `
INSERT INTO vendor_clicks (user_phone, vendor_id, search_query)
VALUES ($1, $2, $3);
`
	if _, err := r.pool.Exec(ctx, q, click.UserPhone, click.VendorID, click.SearchQuery); err != nil {
		return fmt.Errorf("insert vendor click: %w", err)
	}
	return nil
}

// ListVendorClicks returns the newest click rows, most recent first.
func (r *Repository) ListVendorClicks(ctx context.Context, limit int) ([]VendorClick, error) {
	if limit <= 0 {
		limit = 1000
	}
	const q = `
SELECT id, user_phone, vendor_id, search_query, created_at
FROM vendor_clicks
ORDER BY created_at DESC
LIMIT $1;
`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list vendor clicks: %w", err)
	}
	defer rows.Close()

	var clicks []VendorClick
	for rows.Next() {
		var c VendorClick
		if err := rows.Scan(&c.ID, &c.UserPhone, &c.VendorID, &c.SearchQuery, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan vendor click: %w", err)
		}
		clicks = append(clicks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vendor clicks: %w", err)
	}
	return clicks, nil
}

// CountVendorClicksBetween counts clicks created in [from, to).
func (r *Repository) CountVendorClicksBetween(ctx context.Context, from, to time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM vendor_clicks WHERE created_at >= $1 AND created_at < $2;`
	var n int
	if err := r.pool.QueryRow(ctx, q, from, to).Scan(&n); err != nil {
		return 0, fmt.Errorf("count vendor clicks: %w", err)
	}
	return n, nil
}
