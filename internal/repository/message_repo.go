package repository

import (
	"context"
	"database/sql"

	"github.com/Webizinnovation/ServiceAppBack/internal/models"
	"github.com/jackc/pgx/v5"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `id, room_id, sender_id, sender_role, kind, content, filename, voice_duration_ms, is_read, created_at`

// Create inserts a message. is_read is left NULL on purpose: the store
// representation is tri-state and absent means unread.
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (room_id, sender_id, sender_role, kind, content, filename, voice_duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	var duration any
	if msg.Kind == models.KindVoice {
		duration = msg.VoiceDurationMS
	}
	return r.db.QueryRow(
		ctx,
		query,
		msg.RoomID,
		msg.SenderID,
		msg.SenderRole,
		msg.Kind,
		msg.Content,
		msg.Filename,
		duration,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *MessageRepository) ListByRoom(
	ctx context.Context,
	roomID int64,
	limit int,
	offset int,
) ([]models.Message, int, error) {
	totalQuery := `
		SELECT COUNT(*)
		FROM messages
		WHERE room_id = $1
	`

	var total int
	if err := r.db.QueryRow(ctx, totalQuery, roomID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE room_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, roomID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

// ListByRooms loads every message of the given rooms in one round trip,
// grouped by room id. Order within a group is unspecified; the
// aggregator reorders defensively anyway.
func (r *MessageRepository) ListByRooms(
	ctx context.Context,
	roomIDs []int64,
) (map[int64][]models.Message, error) {
	grouped := make(map[int64][]models.Message, len(roomIDs))
	if len(roomIDs) == 0 {
		return grouped, nil
	}

	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE room_id = ANY($1)
	`

	rows, err := r.db.Query(ctx, query, roomIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	for _, msg := range messages {
		grouped[msg.RoomID] = append(grouped[msg.RoomID], msg)
	}
	return grouped, nil
}

// ListUnread returns the room's messages authored by the given role
// whose read flag is not true. IS NOT TRUE covers both the explicit
// FALSE and the legacy NULL representation.
func (r *MessageRepository) ListUnread(
	ctx context.Context,
	roomID int64,
	senderRole models.Role,
) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE room_id = $1
		  AND sender_role = $2
		  AND is_read IS NOT TRUE
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, roomID, senderRole)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (r *MessageRepository) MarkRead(ctx context.Context, messageID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE messages
		SET is_read = TRUE
		WHERE id = $1
	`, messageID)
	return err
}

func (r *MessageRepository) MarkMessagesRead(
	ctx context.Context,
	messageIDs []int64,
	readerID int64,
) error {
	if len(messageIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `
		UPDATE messages
		SET is_read = TRUE
		WHERE id = ANY($1)
		  AND sender_id <> $2
		  AND is_read IS NOT TRUE
	`, messageIDs, readerID)
	return err
}

func scanMessages(rows pgx.Rows) ([]models.Message, error) {
	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		var isRead sql.NullBool
		var duration sql.NullInt64
		if err := rows.Scan(
			&msg.ID,
			&msg.RoomID,
			&msg.SenderID,
			&msg.SenderRole,
			&msg.Kind,
			&msg.Content,
			&msg.Filename,
			&duration,
			&isRead,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}

		// Tri-state read flag collapses to a boolean here, once.
		msg.IsRead = isRead.Valid && isRead.Bool
		if duration.Valid {
			msg.VoiceDurationMS = duration.Int64
		}

		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}
