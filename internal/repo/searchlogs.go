package repo

import (
	"context"
	"fmt"
	"time"
)

// InsertSearchLog appends one search to the search_logs table.
func (r *Repository) InsertSearchLog(ctx context.Context, log SearchLog) error {
	const q = `
INSERT INTO search_logs (user_phone, query, intent, results_count, vendors_returned, response_time_ms)
VALUES ($1, $2, $3, $4, $5, $6);
`
	_, err := r.pool.Exec(ctx, q,
		log.UserPhone,
		log.Query,
		log.Intent,
		log.ResultsCount,
		log.VendorsReturned,
		log.ResponseTimeMs,
	)
	if err != nil {
		return fmt.Errorf("insert search log: %w", err)
	}
	return nil
}

// ListRecentSearchLogs returns the newest search logs, most recent first.
func (r *Repository) ListRecentSearchLogs(ctx context.Context, limit int) ([]SearchLog, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT id, user_phone, query, intent, results_count, vendors_returned, response_time_ms, created_at
FROM search_logs
ORDER BY created_at DESC
LIMIT $1;
`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent search logs: %w", err)
	}
	defer rows.Close()
	return scanSearchLogs(rows)
}

// ListSearchLogsSince returns search logs created at or after since,
// most recent first.
func (r *Repository) ListSearchLogsSince(ctx context.Context, since time.Time, limit int) ([]SearchLog, error) {
	if limit <= 0 {
		limit = 1000
	}
	const q = `
SELECT id, user_phone, query, intent, results_count, vendors_returned, response_time_ms, created_at
FROM search_logs
WHERE created_at >= $1
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, q, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list search logs since: %w", err)
	}
	defer rows.Close()
	return scanSearchLogs(rows)
}

// CountSearchLogsBetween counts searches created in [from, to).
func (r *Repository) CountSearchLogsBetween(ctx context.Context, from, to time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM search_logs WHERE created_at >= $1 AND created_at < $2;`
	var n int
	if err := r.pool.QueryRow(ctx, q, from, to).Scan(&n); err != nil {
		return 0, fmt.Errorf("count search logs: %w", err)
	}
	return n, nil
}

type searchLogRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanSearchLogs(rows searchLogRows) ([]SearchLog, error) {
	var logs []SearchLog
	for rows.Next() {
		var l SearchLog
		if err := rows.Scan(&l.ID, &l.UserPhone, &l.Query, &l.Intent, &l.ResultsCount, &l.VendorsReturned, &l.ResponseTimeMs, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan search log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search logs: %w", err)
	}
	return logs, nil
}
