package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// SyncGeminiKeys ensures the configured keys exist in the database.
func (r *Repository) SyncGeminiKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		for _, key := range keys {
			if _, err := tx.Exec(ctx, `
INSERT INTO api_keys (value, provider, status)
VALUES ($1, 'gemini', 'active')
ON CONFLICT (value, provider) DO NOTHING;
`, key); err != nil {
				return fmt.Errorf("sync gemini key %q: %w", key[:min(5, len(key))], err)
			}
		}
		return nil
	})
}

// ListActiveGeminiKeys retrieves active Gemini API keys, least recently
// used first.
func (r *Repository) ListActiveGeminiKeys(ctx context.Context) ([]APIKey, error) {
	const q = `
SELECT id, value, provider, cooldown_until, created_at, updated_at
FROM api_keys
WHERE provider = 'gemini' AND status = 'active'
ORDER BY last_used_at ASC NULLS FIRST, created_at ASC;
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list active gemini keys: %w", err)
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		if err := rows.Scan(&k.ID, &k.Value, &k.Provider, &k.CooldownUntil, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan active gemini key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active gemini keys: %w", err)
	}
	return keys, nil
}

// SetCooldownUntil sets the cooldown time for a specific API key.
func (r *Repository) SetCooldownUntil(ctx context.Context, id string, until time.Time) error {
	const q = `UPDATE api_keys SET cooldown_until = $2, updated_at = NOW() WHERE id = $1`
	ct, err := r.pool.Exec(ctx, q, id, until)
	if err != nil {
		return fmt.Errorf("update api key cooldown: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("api key not found: %s", id)
	}
	return nil
}

// MarkKeyUsed records the rotation order for key selection.
func (r *Repository) MarkKeyUsed(ctx context.Context, id string) error {
	const q = `UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`
	if _, err := r.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("mark api key used: %w", err)
	}
	return nil
}
