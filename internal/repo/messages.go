package repo

import (
	"context"
	"fmt"
)

// InsertMessage stores a message record for auditing purposes.
func (r *Repository) InsertMessage(ctx context.Context, msg MessageRecord) error {
	const q = `
INSERT INTO bot_messages (message_id, from_phone, to_phone, message_body, message_type, media_url, is_from_bot, sent_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
	_, err := r.pool.Exec(ctx, q,
		msg.MessageID,
		msg.FromPhone,
		msg.ToPhone,
		msg.Body,
		msg.Kind,
		msg.MediaURL,
		msg.IsFromBot,
		msg.SentAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}
