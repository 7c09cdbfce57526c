package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Webizinnovation/ServiceAppBack/internal/inbox"
	"github.com/Webizinnovation/ServiceAppBack/internal/models"
	"github.com/Webizinnovation/ServiceAppBack/internal/notify"
	"github.com/Webizinnovation/ServiceAppBack/internal/sessions"
	inboxws "github.com/Webizinnovation/ServiceAppBack/internal/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type stubInboxStore struct {
	mu    sync.Mutex
	feeds []inbox.RoomFeed
	err   error
}

func (s *stubInboxStore) ListRoomFeeds(context.Context, int64, models.Role) ([]inbox.RoomFeed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}

	out := make([]inbox.RoomFeed, len(s.feeds))
	for i, feed := range s.feeds {
		out[i] = feed
		out[i].Messages = append([]models.Message(nil), feed.Messages...)
	}
	return out, nil
}

func (s *stubInboxStore) ListUnread(_ context.Context, roomID int64, senderRole models.Role) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var unread []models.Message
	for _, feed := range s.feeds {
		if feed.Room.ID != roomID {
			continue
		}
		for _, msg := range feed.Messages {
			if msg.SenderRole == senderRole && !msg.IsRead {
				unread = append(unread, msg)
			}
		}
	}
	return unread, nil
}

func (s *stubInboxStore) MarkMessageRead(_ context.Context, messageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for fi := range s.feeds {
		for mi := range s.feeds[fi].Messages {
			if s.feeds[fi].Messages[mi].ID == messageID {
				s.feeds[fi].Messages[mi].IsRead = true
			}
		}
	}
	return nil
}

func inboxTestFixture(t *testing.T, store inbox.Store) (*fiber.App, *sessions.Registry) {
	t.Helper()

	registry := sessions.NewRegistry(store, notify.NewMemoryBus(), nil, zap.NewNop(), time.Second)
	t.Cleanup(registry.Close)

	handler := NewInboxHandler(registry, inboxws.NewHub(nil, zap.NewNop()), "secret")

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", "user")
		c.Locals("user_id", "42")
		return c.Next()
	})
	app.Get("/api/v1/inbox", handler.List)
	app.Post("/api/v1/inbox/refresh", handler.Refresh)
	app.Post("/api/v1/inbox/rooms/:id/select", handler.SelectRoom)
	app.Get("/api/v1/inbox/badge", handler.Badge)
	return app, registry
}

func inboxStoreWithUnread() *stubInboxStore {
	created := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	return &stubInboxStore{
		feeds: []inbox.RoomFeed{
			{
				Room:        models.Room{ID: 1, UserID: 42, ProviderID: 8, CreatedAt: created, UpdatedAt: created},
				Counterpart: models.Participant{ID: 8, Role: models.RoleProvider, DisplayName: "Ada"},
				Messages: []models.Message{
					{ID: 1, RoomID: 1, SenderID: 8, SenderRole: models.RoleProvider, Kind: models.KindText, Content: "hello", CreatedAt: created.Add(time.Minute)},
					{ID: 2, RoomID: 1, SenderID: 8, SenderRole: models.RoleProvider, Kind: models.KindText, Content: "still there?", CreatedAt: created.Add(2 * time.Minute)},
				},
			},
			{
				Room:        models.Room{ID: 2, UserID: 42, ProviderID: 9, CreatedAt: created.Add(time.Hour), UpdatedAt: created.Add(time.Hour)},
				Counterpart: models.Participant{ID: 9, Role: models.RoleProvider, DisplayName: "Grace"},
			},
		},
	}
}

func TestInboxListReturnsSnapshot(t *testing.T) {
	app, _ := inboxTestFixture(t, inboxStoreWithUnread())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inbox", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var snap inbox.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if snap.State != inbox.StateReady {
		t.Fatalf("expected ready, got %s", snap.State)
	}
	if len(snap.Conversations) != 2 || snap.TotalUnread != 2 {
		t.Fatalf("unexpected snapshot: %d conversations, total %d", len(snap.Conversations), snap.TotalUnread)
	}
	if snap.Conversations[0].RoomID != 2 {
		t.Fatalf("expected newest room first, got %d", snap.Conversations[0].RoomID)
	}
	if snap.Conversations[1].Preview != "Ada: still there?" {
		t.Fatalf("unexpected preview: %q", snap.Conversations[1].Preview)
	}
}

func TestInboxListAppliesFilter(t *testing.T) {
	app, _ := inboxTestFixture(t, inboxStoreWithUnread())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inbox?filter=unread", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var snap inbox.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if snap.Filter != inbox.FilterUnread {
		t.Fatalf("expected unread filter, got %s", snap.Filter)
	}
	if len(snap.Conversations) != 1 || snap.Conversations[0].RoomID != 1 {
		t.Fatalf("expected only the unread room, got %+v", snap.Conversations)
	}
}

func TestInboxListRejectsUnknownFilter(t *testing.T) {
	app, _ := inboxTestFixture(t, inboxStoreWithUnread())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inbox?filter=starred", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestInboxRefreshAccepted(t *testing.T) {
	app, _ := inboxTestFixture(t, inboxStoreWithUnread())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/inbox/refresh", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
}

func TestInboxSelectRoomMarksRead(t *testing.T) {
	store := inboxStoreWithUnread()
	app, registry := inboxTestFixture(t, store)

	// Prime the session so the conversation list is loaded.
	warm := httptest.NewRequest(http.MethodGet, "/api/v1/inbox", nil)
	warmResp, err := app.Test(warm)
	if err != nil {
		t.Fatalf("app.Test(warm): %v", err)
	}
	warmResp.Body.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/inbox/rooms/1/select", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Room       models.ConversationView `json:"room"`
		Receipt    inbox.ReadReceipt       `json:"receipt"`
		ReadMarked bool                    `json:"read_marked"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !body.ReadMarked || body.Receipt.Marked != 2 {
		t.Fatalf("unexpected receipt: %+v marked=%v", body.Receipt, body.ReadMarked)
	}
	if body.Room.UnreadCount != 0 {
		t.Fatalf("expected returned room reset, got %d", body.Room.UnreadCount)
	}

	ctrl, err := registry.Controller(context.Background(), 42, models.RoleUser)
	if err != nil {
		t.Fatalf("Controller: %v", err)
	}
	if ctrl.TotalUnread() != 0 {
		t.Fatalf("expected unread total reset, got %d", ctrl.TotalUnread())
	}
}

func TestInboxSelectRoomUnknownRoom(t *testing.T) {
	app, _ := inboxTestFixture(t, inboxStoreWithUnread())

	warm := httptest.NewRequest(http.MethodGet, "/api/v1/inbox", nil)
	warmResp, err := app.Test(warm)
	if err != nil {
		t.Fatalf("app.Test(warm): %v", err)
	}
	warmResp.Body.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/inbox/rooms/99/select", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestInboxBadgeReflectsUnread(t *testing.T) {
	app, _ := inboxTestFixture(t, inboxStoreWithUnread())

	// Prime the user session; the badge composes from live sessions.
	warm := httptest.NewRequest(http.MethodGet, "/api/v1/inbox", nil)
	warmResp, err := app.Test(warm)
	if err != nil {
		t.Fatalf("app.Test(warm): %v", err)
	}
	warmResp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/inbox/badge", nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}

		var body struct {
			Badge inbox.BadgeState `json:"badge"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			resp.Body.Close()
			t.Fatalf("Decode: %v", err)
		}
		resp.Body.Close()

		if body.Badge.UserTotal == 2 && body.Badge.HasUnread {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("badge never populated, got %+v", body.Badge)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
