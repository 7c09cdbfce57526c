package repository

import (
	"context"

	"github.com/Webizinnovation/ServiceAppBack/internal/models"
)

type RoomRepository struct {
	db DBTX
}

func NewRoomRepository(db DBTX) *RoomRepository {
	return &RoomRepository{db: db}
}

// RoomWithCounterpart is a room row joined with the other participant's
// profile, relative to the viewer the query ran for.
type RoomWithCounterpart struct {
	Room        models.Room
	Counterpart models.Participant
}

func (r *RoomRepository) CreateOrGet(
	ctx context.Context,
	userID int64,
	providerID int64,
) (*models.Room, error) {
	query := `
		INSERT INTO rooms (user_id, provider_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, provider_id)
		DO UPDATE SET updated_at = rooms.updated_at
		RETURNING id, user_id, provider_id, created_at, updated_at
	`

	var room models.Room
	err := r.db.QueryRow(ctx, query, userID, providerID).Scan(
		&room.ID,
		&room.UserID,
		&room.ProviderID,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &room, nil
}

func (r *RoomRepository) GetByIDForParticipant(
	ctx context.Context,
	roomID int64,
	participantID int64,
) (*models.Room, error) {
	query := `
		SELECT id, user_id, provider_id, created_at, updated_at
		FROM rooms
		WHERE id = $1 AND (user_id = $2 OR provider_id = $2)
	`

	var room models.Room
	err := r.db.QueryRow(ctx, query, roomID, participantID).Scan(
		&room.ID,
		&room.UserID,
		&room.ProviderID,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &room, nil
}

// ListForViewer returns every room the viewer participates in under the
// given role, joined with the counterpart's profile snapshot.
func (r *RoomRepository) ListForViewer(
	ctx context.Context,
	viewerID int64,
	viewerRole models.Role,
) ([]RoomWithCounterpart, error) {
	query := `
		SELECT
			r.id,
			r.user_id,
			r.provider_id,
			r.created_at,
			r.updated_at,
			u.id,
			u.role,
			u.display_name,
			u.avatar_url,
			u.online
		FROM rooms r
		JOIN users u ON u.id = r.provider_id
		WHERE r.user_id = $1
		ORDER BY r.created_at DESC, r.id DESC
	`
	if viewerRole == models.RoleProvider {
		query = `
			SELECT
				r.id,
				r.user_id,
				r.provider_id,
				r.created_at,
				r.updated_at,
				u.id,
				u.role,
				u.display_name,
				u.avatar_url,
				u.online
			FROM rooms r
			JOIN users u ON u.id = r.user_id
			WHERE r.provider_id = $1
			ORDER BY r.created_at DESC, r.id DESC
		`
	}

	rows, err := r.db.Query(ctx, query, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]RoomWithCounterpart, 0)
	for rows.Next() {
		var rc RoomWithCounterpart
		if err := rows.Scan(
			&rc.Room.ID,
			&rc.Room.UserID,
			&rc.Room.ProviderID,
			&rc.Room.CreatedAt,
			&rc.Room.UpdatedAt,
			&rc.Counterpart.ID,
			&rc.Counterpart.Role,
			&rc.Counterpart.DisplayName,
			&rc.Counterpart.AvatarURL,
			&rc.Counterpart.Online,
		); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func (r *RoomRepository) Touch(ctx context.Context, roomID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE rooms
		SET updated_at = NOW()
		WHERE id = $1
	`, roomID)
	return err
}
