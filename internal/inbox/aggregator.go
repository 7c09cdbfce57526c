package inbox

import (
	"context"
	"sort"

	"github.com/Webizinnovation/ServiceAppBack/internal/models"
	"go.uber.org/zap"
)

// RoomFeed is one room as the remote store returns it: the room record,
// the counterpart's profile snapshot, and the room's messages in no
// guaranteed order.
type RoomFeed struct {
	Room        models.Room
	Counterpart models.Participant
	Messages    []models.Message
}

// Store is the remote-store capability the inbox engine consumes.
type Store interface {
	ListRoomFeeds(ctx context.Context, viewerID int64, viewerRole models.Role) ([]RoomFeed, error)
	ListUnread(ctx context.Context, roomID int64, senderRole models.Role) ([]models.Message, error)
	MarkMessageRead(ctx context.Context, messageID int64) error
}

// AggregateResult is the output of one aggregation pass.
type AggregateResult struct {
	Views   []models.ConversationView
	Unread  map[int64]int
	RoomIDs []int64 // sorted ascending, for subscription reconciliation
}

// Aggregator joins rooms with their last message and counterpart into
// an ordered conversation list. It is parameterized by viewer role; the
// counterpart role drives every unread predicate.
type Aggregator struct {
	store  Store
	logger *zap.Logger
}

func NewAggregator(store Store, logger *zap.Logger) *Aggregator {
	return &Aggregator{store: store, logger: logger}
}

func (a *Aggregator) Aggregate(ctx context.Context, viewerID int64, viewerRole models.Role) (*AggregateResult, error) {
	feeds, err := a.store.ListRoomFeeds(ctx, viewerID, viewerRole)
	if err != nil {
		return nil, &FetchError{Cause: err}
	}

	feeds = a.dedupeRooms(feeds)
	counterpartRole := viewerRole.Counterpart()

	result := &AggregateResult{
		Views:   make([]models.ConversationView, 0, len(feeds)),
		Unread:  make(map[int64]int, len(feeds)),
		RoomIDs: make([]int64, 0, len(feeds)),
	}

	for _, feed := range feeds {
		// The store promises nothing about message order.
		messages := make([]models.Message, len(feed.Messages))
		copy(messages, feed.Messages)
		sort.SliceStable(messages, func(i, j int) bool {
			if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
				return messages[i].ID < messages[j].ID
			}
			return messages[i].CreatedAt.Before(messages[j].CreatedAt)
		})

		var last *models.Message
		if len(messages) > 0 {
			last = &messages[len(messages)-1]
		}

		unread := 0
		for _, msg := range messages {
			if msg.SenderRole == counterpartRole && !msg.IsRead {
				unread++
			}
		}

		counterpart := feed.Counterpart
		if viewerRole != models.RoleUser {
			// Availability is a user-facing affordance only.
			counterpart.Online = false
		}

		summary := Summarize(last, counterpart)
		result.Views = append(result.Views, models.ConversationView{
			RoomID:        feed.Room.ID,
			Counterpart:   counterpart,
			Preview:       summary.Preview,
			LastMessageAt: summary.LastMessageAt,
			UnreadCount:   unread,
			RoomCreatedAt: feed.Room.CreatedAt,
		})
		result.Unread[feed.Room.ID] = unread
		result.RoomIDs = append(result.RoomIDs, feed.Room.ID)
	}

	sort.SliceStable(result.Views, func(i, j int) bool {
		if result.Views[i].RoomCreatedAt.Equal(result.Views[j].RoomCreatedAt) {
			return result.Views[i].RoomID > result.Views[j].RoomID
		}
		return result.Views[i].RoomCreatedAt.After(result.Views[j].RoomCreatedAt)
	})
	sort.Slice(result.RoomIDs, func(i, j int) bool { return result.RoomIDs[i] < result.RoomIDs[j] })

	return result, nil
}

// dedupeRooms collapses duplicate rooms for the same participant pair
// down to the most recently created one. Duplicates are a store-level
// race; keeping exactly one prevents double-counted unreads.
func (a *Aggregator) dedupeRooms(feeds []RoomFeed) []RoomFeed {
	type pair struct{ userID, providerID int64 }

	kept := make(map[pair]int, len(feeds))
	out := make([]RoomFeed, 0, len(feeds))

	for _, feed := range feeds {
		key := pair{feed.Room.UserID, feed.Room.ProviderID}
		idx, seen := kept[key]
		if !seen {
			kept[key] = len(out)
			out = append(out, feed)
			continue
		}

		existing := out[idx]
		if feed.Room.CreatedAt.After(existing.Room.CreatedAt) ||
			(feed.Room.CreatedAt.Equal(existing.Room.CreatedAt) && feed.Room.ID > existing.Room.ID) {
			out[idx] = feed
			existing, feed = feed, existing
		}
		a.logger.Warn("inbox: duplicate room for participant pair",
			zap.Int64("kept_room_id", existing.Room.ID),
			zap.Int64("dropped_room_id", feed.Room.ID),
			zap.Int64("user_id", key.userID),
			zap.Int64("provider_id", key.providerID),
		)
	}

	return out
}
