package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// UpsertUser stores or refreshes the user profile for the given identity.
// last_message_at is bumped on every call.
func (r *Repository) UpsertUser(ctx context.Context, phone string, name *string) (*User, error) {
	const q = `
INSERT INTO bot_users (phone_number, name, last_message_at, updated_at)
VALUES ($1, $2, NOW(), NOW())
ON CONFLICT (phone_number) DO UPDATE SET
    name = COALESCE(EXCLUDED.name, bot_users.name),
    total_messages = bot_users.total_messages + 1,
    last_message_at = NOW(),
    updated_at = NOW()
RETURNING id, phone_number, name, total_messages, total_searches, total_clicks, last_message_at, created_at, updated_at;
`
	row := r.pool.QueryRow(ctx, q, phone, name)

	var u User
	if err := row.Scan(&u.ID, &u.PhoneNumber, &u.Name, &u.TotalMessages, &u.TotalSearches, &u.TotalClicks, &u.LastMessageAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return &u, nil
}

// GetUserByPhone returns the user profile keyed by identity, nil if absent.
func (r *Repository) GetUserByPhone(ctx context.Context, phone string) (*User, error) {
	const q = `
SELECT id, phone_number, name, total_messages, total_searches, total_clicks, last_message_at, created_at, updated_at
FROM bot_users
WHERE phone_number = $1
LIMIT 1;
`
	row := r.pool.QueryRow(ctx, q, phone)
	var u User
	err := row.Scan(&u.ID, &u.PhoneNumber, &u.Name, &u.TotalMessages, &u.TotalSearches, &u.TotalClicks, &u.LastMessageAt, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by phone: %w", err)
	}
	return &u, nil
}

// IncrementUserStat bumps one of the running per-user counters. Only the
// known counter columns are accepted.
func (r *Repository) IncrementUserStat(ctx context.Context, phone, stat string) error {
	switch stat {
	case "total_messages", "total_searches", "total_clicks":
	default:
		return fmt.Errorf("unknown user stat column %q", stat)
	}
	q := fmt.Sprintf(`
UPDATE bot_users
SET %s = %s + 1, last_message_at = NOW(), updated_at = NOW()
WHERE phone_number = $1;
`, stat, stat)
	if _, err := r.pool.Exec(ctx, q, phone); err != nil {
		return fmt.Errorf("increment user stat %s: %w", stat, err)
	}
	return nil
}

// ListUsers returns user profiles, newest activity first.
func (r *Repository) ListUsers(ctx context.Context, limit int) ([]User, error) {
	if limit <= 0 {
		limit = 1000
	}
	const q = `
SELECT id, phone_number, name, total_messages, total_searches, total_clicks, last_message_at, created_at, updated_at
FROM bot_users
ORDER BY last_message_at DESC
LIMIT $1;
`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.PhoneNumber, &u.Name, &u.TotalMessages, &u.TotalSearches, &u.TotalClicks, &u.LastMessageAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// CountUsersActiveBetween counts users whose last message fell in [from, to).
func (r *Repository) CountUsersActiveBetween(ctx context.Context, from, to time.Time) (int, error) {
	const q = `
SELECT COUNT(*) FROM bot_users
WHERE last_message_at >= $1 AND last_message_at < $2;
`
	var n int
	if err := r.pool.QueryRow(ctx, q, from, to).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active users: %w", err)
	}
	return n, nil
}
