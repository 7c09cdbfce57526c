package repository

import (
	"context"

	"github.com/Webizinnovation/ServiceAppBack/internal/inbox"
	"github.com/Webizinnovation/ServiceAppBack/internal/models"
)

// InboxStore adapts the pgx repositories to the inbox engine's Store
// capability: rooms joined with counterpart and messages, the unread
// query, and the per-message read-flag update.
type InboxStore struct {
	rooms    *RoomRepository
	messages *MessageRepository
}

func NewInboxStore(db DBTX) *InboxStore {
	return &InboxStore{
		rooms:    NewRoomRepository(db),
		messages: NewMessageRepository(db),
	}
}

func (s *InboxStore) ListRoomFeeds(ctx context.Context, viewerID int64, viewerRole models.Role) ([]inbox.RoomFeed, error) {
	rooms, err := s.rooms.ListForViewer(ctx, viewerID, viewerRole)
	if err != nil {
		return nil, err
	}

	roomIDs := make([]int64, 0, len(rooms))
	for _, rc := range rooms {
		roomIDs = append(roomIDs, rc.Room.ID)
	}

	grouped, err := s.messages.ListByRooms(ctx, roomIDs)
	if err != nil {
		return nil, err
	}

	feeds := make([]inbox.RoomFeed, 0, len(rooms))
	for _, rc := range rooms {
		feeds = append(feeds, inbox.RoomFeed{
			Room:        rc.Room,
			Counterpart: rc.Counterpart,
			Messages:    grouped[rc.Room.ID],
		})
	}
	return feeds, nil
}

func (s *InboxStore) ListUnread(ctx context.Context, roomID int64, senderRole models.Role) ([]models.Message, error) {
	return s.messages.ListUnread(ctx, roomID, senderRole)
}

func (s *InboxStore) MarkMessageRead(ctx context.Context, messageID int64) error {
	return s.messages.MarkRead(ctx, messageID)
}
