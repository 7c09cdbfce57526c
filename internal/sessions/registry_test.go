package sessions

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Webizinnovation/ServiceAppBack/internal/inbox"
	"github.com/Webizinnovation/ServiceAppBack/internal/models"
	"github.com/Webizinnovation/ServiceAppBack/internal/notify"
	"go.uber.org/zap"
)

type stubStore struct {
	mu     sync.Mutex
	unread int
}

func (s *stubStore) ListRoomFeeds(_ context.Context, viewerID int64, viewerRole models.Role) ([]inbox.RoomFeed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	room := models.Room{ID: 1, UserID: 42, ProviderID: 8, CreatedAt: created, UpdatedAt: created}
	counterpartRole := viewerRole.Counterpart()

	messages := make([]models.Message, 0, s.unread)
	for i := 0; i < s.unread; i++ {
		messages = append(messages, models.Message{
			ID:         int64(i + 1),
			RoomID:     1,
			SenderID:   room.ParticipantID(counterpartRole),
			SenderRole: counterpartRole,
			Kind:       models.KindText,
			Content:    "hello",
			CreatedAt:  created.Add(time.Duration(i+1) * time.Minute),
		})
	}

	return []inbox.RoomFeed{{
		Room:        room,
		Counterpart: models.Participant{ID: room.ParticipantID(counterpartRole), Role: counterpartRole, DisplayName: "Ada"},
		Messages:    messages,
	}}, nil
}

func (s *stubStore) ListUnread(context.Context, int64, models.Role) ([]models.Message, error) {
	return nil, nil
}

func (s *stubStore) MarkMessageRead(context.Context, int64) error { return nil }

type recordingSink struct {
	mu     sync.Mutex
	inbox  int
	badges []inbox.BadgeState
}

func (s *recordingSink) PushInbox(int64, models.Role, inbox.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbox++
}

func (s *recordingSink) PushBadge(_ int64, state inbox.BadgeState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.badges = append(s.badges, state)
}

func (s *recordingSink) InboxPushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inbox
}

func waitForState(t *testing.T, ctrl *inbox.Controller, want inbox.State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for ctrl.Snapshot().State != want {
		select {
		case <-deadline:
			t.Fatalf("controller never reached %s, at %s", want, ctrl.Snapshot().State)
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestRegistryControllerIsPerViewerRole(t *testing.T) {
	reg := NewRegistry(&stubStore{unread: 1}, notify.NewMemoryBus(), nil, zap.NewNop(), time.Second)
	defer reg.Close()

	a, err := reg.Controller(context.Background(), 42, models.RoleUser)
	if err != nil {
		t.Fatalf("Controller: %v", err)
	}
	b, err := reg.Controller(context.Background(), 42, models.RoleUser)
	if err != nil {
		t.Fatalf("Controller: %v", err)
	}
	if a != b {
		t.Fatal("expected the same controller instance for repeated lookups")
	}

	c, err := reg.Controller(context.Background(), 42, models.RoleProvider)
	if err != nil {
		t.Fatalf("Controller: %v", err)
	}
	if a == c {
		t.Fatal("expected distinct controllers per role")
	}
}

func TestRegistryBadgeComposesBothRoles(t *testing.T) {
	reg := NewRegistry(&stubStore{unread: 2}, notify.NewMemoryBus(), nil, zap.NewNop(), time.Second)
	defer reg.Close()

	userCtrl, err := reg.Controller(context.Background(), 42, models.RoleUser)
	if err != nil {
		t.Fatalf("Controller(user): %v", err)
	}
	providerCtrl, err := reg.Controller(context.Background(), 42, models.RoleProvider)
	if err != nil {
		t.Fatalf("Controller(provider): %v", err)
	}
	waitForState(t, userCtrl, inbox.StateReady)
	waitForState(t, providerCtrl, inbox.StateReady)

	deadline := time.After(2 * time.Second)
	for {
		state := reg.Badge(42)
		if state.UserTotal == 2 && state.ProviderTotal == 2 && state.HasUnread {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("badge never composed, got %+v", reg.Badge(42))
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestRegistryReleaseTearsDownTheSession(t *testing.T) {
	reg := NewRegistry(&stubStore{unread: 1}, notify.NewMemoryBus(), nil, zap.NewNop(), time.Second)
	defer reg.Close()

	ctrl, err := reg.Controller(context.Background(), 42, models.RoleUser)
	if err != nil {
		t.Fatalf("Controller: %v", err)
	}
	waitForState(t, ctrl, inbox.StateReady)

	reg.Release(42, models.RoleUser)

	if _, _, err := ctrl.SelectRoom(context.Background(), 1); err != inbox.ErrClosed {
		t.Fatalf("expected released controller closed, got %v", err)
	}
	if got := reg.Badge(42); got.HasUnread {
		t.Fatalf("expected badge cleared after last session released, got %+v", got)
	}

	// A fresh lookup starts a new session.
	again, err := reg.Controller(context.Background(), 42, models.RoleUser)
	if err != nil {
		t.Fatalf("Controller after release: %v", err)
	}
	if again == ctrl {
		t.Fatal("expected a fresh controller after release")
	}
}

func TestRegistrySinkReceivesPushes(t *testing.T) {
	sink := &recordingSink{}
	reg := NewRegistry(&stubStore{unread: 1}, notify.NewMemoryBus(), sink, zap.NewNop(), time.Second)
	defer reg.Close()

	ctrl, err := reg.Controller(context.Background(), 42, models.RoleUser)
	if err != nil {
		t.Fatalf("Controller: %v", err)
	}
	waitForState(t, ctrl, inbox.StateReady)

	deadline := time.After(2 * time.Second)
	for sink.InboxPushes() == 0 {
		select {
		case <-deadline:
			t.Fatal("no inbox push delivered to sink")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestRegistryCloseRejectsNewSessions(t *testing.T) {
	reg := NewRegistry(&stubStore{}, notify.NewMemoryBus(), nil, zap.NewNop(), time.Second)
	reg.Close()
	reg.Close() // idempotent

	if _, err := reg.Controller(context.Background(), 42, models.RoleUser); err != inbox.ErrClosed {
		t.Fatalf("expected ErrClosed after Close, got %v", err)
	}
}
