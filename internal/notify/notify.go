package notify

import (
	"context"
	"fmt"

	"github.com/Webizinnovation/ServiceAppBack/internal/models"
	"github.com/google/uuid"
)

const (
	TableRooms    = "rooms"
	TableMessages = "messages"
)

const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Event is one change notification. ID is unique per event so consumers
// can drop redeliveries from the transport.
type Event struct {
	ID         string `json:"id"`
	Table      string `json:"table"`
	Op         string `json:"op"`
	RoomID     int64  `json:"room_id"`
	UserID     int64  `json:"user_id,omitempty"`
	ProviderID int64  `json:"provider_id,omitempty"`
}

func NewEvent(table, op string, roomID, userID, providerID int64) Event {
	return Event{
		ID:         uuid.NewString(),
		Table:      table,
		Op:         op,
		RoomID:     roomID,
		UserID:     userID,
		ProviderID: providerID,
	}
}

type Subscription interface {
	Close() error
}

type Publisher interface {
	PublishRoomChange(ctx context.Context, ev Event) error
	PublishMessageChange(ctx context.Context, ev Event) error
}

// Bus is the full change-notification capability: publish on writes,
// subscribe per viewer (room stream) and per room-id set (message stream).
type Bus interface {
	Publisher
	SubscribeRooms(ctx context.Context, viewerID int64, role models.Role, fn func(Event)) (Subscription, error)
	SubscribeMessages(ctx context.Context, roomIDs []int64, fn func(Event)) (Subscription, error)
}

func roomChannel(role models.Role, viewerID int64) string {
	return fmt.Sprintf("inbox:rooms:%s:%d", role, viewerID)
}

func messageChannel(roomID int64) string {
	return fmt.Sprintf("inbox:messages:%d", roomID)
}

type noopSubscription struct{}

func (noopSubscription) Close() error { return nil }
