package inbox

import (
	"context"
	"sync"

	"github.com/Webizinnovation/ServiceAppBack/internal/models"
	"go.uber.org/zap"
)

// ReadReceipt reports the outcome of one read-marking batch.
type ReadReceipt struct {
	Marked    int     `json:"marked"`
	FailedIDs []int64 `json:"failed_ids,omitempty"`
}

// ReadMarker marks every unread counterpart message in a room as read.
// The batch is best-effort: each message update is attempted
// independently and a partial failure never aborts the rest.
type ReadMarker struct {
	store  Store
	unread *UnreadCounter
	logger *zap.Logger

	mu       sync.Mutex
	inflight map[int64]struct{}
}

func NewReadMarker(store Store, unread *UnreadCounter, logger *zap.Logger) *ReadMarker {
	return &ReadMarker{
		store:    store,
		unread:   unread,
		logger:   logger,
		inflight: make(map[int64]struct{}),
	}
}

// MarkRoomRead transitions every unread counterpart-authored message in
// the room to read. At most one batch runs per room at a time; a second
// concurrent call returns ErrMarkInFlight and does no work.
//
// Error semantics: a *FetchError means the unread query itself failed —
// the caller may still navigate into the room, but the operation did
// not succeed. A *PartialReadMarkError means some updates failed; the
// optimistic reset stands and the next aggregation pass reconciles.
func (m *ReadMarker) MarkRoomRead(ctx context.Context, roomID int64, counterpartRole models.Role) (ReadReceipt, error) {
	m.mu.Lock()
	if _, busy := m.inflight[roomID]; busy {
		m.mu.Unlock()
		return ReadReceipt{}, ErrMarkInFlight
	}
	m.inflight[roomID] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.inflight, roomID)
		m.mu.Unlock()
	}()

	messages, err := m.store.ListUnread(ctx, roomID, counterpartRole)
	if err != nil {
		return ReadReceipt{}, &FetchError{Cause: err}
	}
	if len(messages) == 0 {
		return ReadReceipt{}, nil
	}

	receipt := ReadReceipt{}
	for _, msg := range messages {
		if err := m.store.MarkMessageRead(ctx, msg.ID); err != nil {
			m.logger.Warn("inbox: failed to mark message read",
				zap.Int64("room_id", roomID),
				zap.Int64("message_id", msg.ID),
				zap.Error(err),
			)
			receipt.FailedIDs = append(receipt.FailedIDs, msg.ID)
			continue
		}
		receipt.Marked++
	}

	// Mask the write latency; the next aggregation pass is authoritative
	// either way.
	m.unread.ApplyLocalReset(roomID)

	if len(receipt.FailedIDs) > 0 {
		return receipt, &PartialReadMarkError{
			RoomID:    roomID,
			Marked:    receipt.Marked,
			FailedIDs: receipt.FailedIDs,
		}
	}
	return receipt, nil
}
