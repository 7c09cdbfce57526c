package inbox

import (
	"context"
	"sync"

	"github.com/Webizinnovation/ServiceAppBack/internal/models"
	"github.com/Webizinnovation/ServiceAppBack/internal/notify"
	"go.uber.org/zap"
)

// Notifier is the slice of the change-notification bus the subscriber
// consumes.
type Notifier interface {
	SubscribeRooms(ctx context.Context, viewerID int64, role models.Role, fn func(notify.Event)) (notify.Subscription, error)
	SubscribeMessages(ctx context.Context, roomIDs []int64, fn func(notify.Event)) (notify.Subscription, error)
}

// Subscriber holds exactly one room-stream subscription for the viewer
// and one message-stream subscription over the current room-id set. Any
// event fires the trigger; the trigger side is expected to coalesce.
//
// The message stream's scope is itself an aggregation output, so
// UpdateRooms reconciles instead of blindly resubscribing: the stream
// is torn down and recreated only when the sorted room-id set actually
// changed.
type Subscriber struct {
	notifier Notifier
	trigger  func()
	logger   *zap.Logger

	mu      sync.Mutex
	roomSub notify.Subscription
	msgSub  notify.Subscription
	roomIDs []int64
	closed  bool
}

func NewSubscriber(notifier Notifier, trigger func(), logger *zap.Logger) *Subscriber {
	return &Subscriber{notifier: notifier, trigger: trigger, logger: logger}
}

// Start establishes the viewer-scoped room stream. Failure leaves the
// subscriber inert; the caller degrades to manual refresh.
func (s *Subscriber) Start(ctx context.Context, viewerID int64, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.roomSub != nil {
		return nil
	}

	sub, err := s.notifier.SubscribeRooms(ctx, viewerID, role, s.handle)
	if err != nil {
		return err
	}
	s.roomSub = sub
	return nil
}

// UpdateRooms reconciles the message stream with the room-id set of the
// latest aggregation pass. ids must be sorted ascending.
func (s *Subscriber) UpdateRooms(ctx context.Context, ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || sameIDs(s.roomIDs, ids) {
		return
	}

	if s.msgSub != nil {
		if err := s.msgSub.Close(); err != nil {
			s.logger.Warn("inbox: closing message subscription", zap.Error(err))
		}
		s.msgSub = nil
	}

	sub, err := s.notifier.SubscribeMessages(ctx, ids, s.handle)
	if err != nil {
		// Room-stream events still drive refreshes; message-level
		// changes surface on the next manual or room-driven pass.
		s.logger.Warn("inbox: message subscription setup failed", zap.Error(err))
		s.roomIDs = nil
		return
	}
	s.msgSub = sub
	s.roomIDs = append([]int64(nil), ids...)
}

// Close releases both subscriptions. No trigger fires after Close
// returns.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	if s.roomSub != nil {
		_ = s.roomSub.Close()
		s.roomSub = nil
	}
	if s.msgSub != nil {
		_ = s.msgSub.Close()
		s.msgSub = nil
	}
}

func (s *Subscriber) handle(notify.Event) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return
	}
	s.trigger()
}

func sameIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
