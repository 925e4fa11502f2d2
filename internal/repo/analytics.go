package repo

import (
	"context"
	"fmt"
)

// InsertAnalyticsEvent appends one audit event to bot_analytics.
func (r *Repository) InsertAnalyticsEvent(ctx context.Context, evt AnalyticsEvent) error {
	userPhone := evt.UserPhone
	if userPhone == "" {
		userPhone = "system"
	}
	const q = `
INSERT INTO bot_analytics (event_type, user_phone, event_data, response_time_ms)
VALUES ($1, $2, $3, $4);
`
	if _, err := r.pool.Exec(ctx, q, evt.EventType, userPhone, evt.EventData, evt.ResponseTimeMs); err != nil {
		return fmt.Errorf("insert analytics event: %w", err)
	}
	return nil
}

// ListRecentAnalyticsEvents returns the newest audit events, most recent first.
func (r *Repository) ListRecentAnalyticsEvents(ctx context.Context, limit int) ([]AnalyticsEvent, error) {
	if limit <= 0 {
		limit = 200
	}
	const q = `
SELECT id, event_type, user_phone, event_data, response_time_ms, created_at
FROM bot_analytics
ORDER BY created_at DESC
LIMIT $1;
`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list analytics events: %w", err)
	}
	defer rows.Close()

	var events []AnalyticsEvent
	for rows.Next() {
		var e AnalyticsEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.UserPhone, &e.EventData, &e.ResponseTimeMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analytics event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analytics events: %w", err)
	}
	return events, nil
}
