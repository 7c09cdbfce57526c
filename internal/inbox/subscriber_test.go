package inbox

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Webizinnovation/ServiceAppBack/internal/models"
	"github.com/Webizinnovation/ServiceAppBack/internal/notify"
	"go.uber.org/zap"
)

type fakeNotifier struct {
	mu           sync.Mutex
	roomCalls    int
	messageCalls int
	lastIDs      []int64
	roomErr      error
	messageErr   error
	roomFn       func(notify.Event)
	messageFn    func(notify.Event)
	closes       int
}

type fakeSub struct {
	n *fakeNotifier
}

func (s *fakeSub) Close() error {
	s.n.mu.Lock()
	defer s.n.mu.Unlock()
	s.n.closes++
	return nil
}

func (n *fakeNotifier) SubscribeRooms(_ context.Context, _ int64, _ models.Role, fn func(notify.Event)) (notify.Subscription, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.roomCalls++
	if n.roomErr != nil {
		return nil, n.roomErr
	}
	n.roomFn = fn
	return &fakeSub{n: n}, nil
}

func (n *fakeNotifier) SubscribeMessages(_ context.Context, roomIDs []int64, fn func(notify.Event)) (notify.Subscription, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messageCalls++
	n.lastIDs = append([]int64(nil), roomIDs...)
	if n.messageErr != nil {
		return nil, n.messageErr
	}
	n.messageFn = fn
	return &fakeSub{n: n}, nil
}

func (n *fakeNotifier) MessageCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.messageCalls
}

func TestSubscriberStartIsIdempotent(t *testing.T) {
	notifier := &fakeNotifier{}
	sub := NewSubscriber(notifier, func() {}, zap.NewNop())

	if err := sub.Start(context.Background(), 42, models.RoleUser); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sub.Start(context.Background(), 42, models.RoleUser); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if notifier.roomCalls != 1 {
		t.Fatalf("expected a single room subscription, got %d", notifier.roomCalls)
	}
}

func TestSubscriberSkipsResubscribeWhenSetUnchanged(t *testing.T) {
	notifier := &fakeNotifier{}
	sub := NewSubscriber(notifier, func() {}, zap.NewNop())

	sub.UpdateRooms(context.Background(), []int64{1, 2, 3})
	sub.UpdateRooms(context.Background(), []int64{1, 2, 3})

	if got := notifier.MessageCalls(); got != 1 {
		t.Fatalf("expected 1 message subscription, got %d", got)
	}
}

func TestSubscriberResubscribesWhenSetChanges(t *testing.T) {
	notifier := &fakeNotifier{}
	sub := NewSubscriber(notifier, func() {}, zap.NewNop())

	sub.UpdateRooms(context.Background(), []int64{1, 2})
	sub.UpdateRooms(context.Background(), []int64{1, 2, 3})

	if got := notifier.MessageCalls(); got != 2 {
		t.Fatalf("expected 2 message subscriptions, got %d", got)
	}
	if notifier.closes != 1 {
		t.Fatalf("expected old stream closed once, got %d", notifier.closes)
	}
	if len(notifier.lastIDs) != 3 {
		t.Fatalf("expected latest set subscribed, got %v", notifier.lastIDs)
	}
}

func TestSubscriberRetriesAfterSetupFailure(t *testing.T) {
	notifier := &fakeNotifier{messageErr: errors.New("broker down")}
	sub := NewSubscriber(notifier, func() {}, zap.NewNop())

	sub.UpdateRooms(context.Background(), []int64{1, 2})

	// The broker recovers; the same set must be retried, not skipped.
	notifier.mu.Lock()
	notifier.messageErr = nil
	notifier.mu.Unlock()

	sub.UpdateRooms(context.Background(), []int64{1, 2})
	if got := notifier.MessageCalls(); got != 2 {
		t.Fatalf("expected retry after failure, got %d calls", got)
	}
}

func TestSubscriberEventsFireTrigger(t *testing.T) {
	notifier := &fakeNotifier{}
	triggers := 0
	sub := NewSubscriber(notifier, func() { triggers++ }, zap.NewNop())

	if err := sub.Start(context.Background(), 42, models.RoleUser); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sub.UpdateRooms(context.Background(), []int64{1})

	notifier.roomFn(notify.Event{Table: notify.TableRooms, Op: notify.OpInsert})
	notifier.messageFn(notify.Event{Table: notify.TableMessages, Op: notify.OpInsert, RoomID: 1})

	if triggers != 2 {
		t.Fatalf("expected 2 triggers, got %d", triggers)
	}
}

func TestSubscriberNoTriggerAfterClose(t *testing.T) {
	notifier := &fakeNotifier{}
	triggers := 0
	sub := NewSubscriber(notifier, func() { triggers++ }, zap.NewNop())

	if err := sub.Start(context.Background(), 42, models.RoleUser); err != nil {
		t.Fatalf("Start: %v", err)
	}
	fn := notifier.roomFn

	sub.Close()
	fn(notify.Event{Table: notify.TableRooms, Op: notify.OpUpdate})

	if triggers != 0 {
		t.Fatalf("expected no trigger after Close, got %d", triggers)
	}
	if notifier.closes != 1 {
		t.Fatalf("expected room stream closed, got %d closes", notifier.closes)
	}

	// Closed subscribers ignore reconciliation too.
	sub.UpdateRooms(context.Background(), []int64{5})
	if got := notifier.MessageCalls(); got != 0 {
		t.Fatalf("expected no subscription after Close, got %d", got)
	}
}
