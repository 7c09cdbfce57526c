package inbox

import (
	"testing"

	"github.com/Webizinnovation/ServiceAppBack/internal/models"
)

func TestBadgeFeedComposesRoleTotals(t *testing.T) {
	feed := NewBadgeFeed(nil)

	feed.Set(models.RoleUser, 3)
	feed.Set(models.RoleProvider, 0)

	state := feed.State()
	if state.UserTotal != 3 || state.ProviderTotal != 0 {
		t.Fatalf("unexpected totals: %+v", state)
	}
	if !state.HasUnread {
		t.Fatal("expected has_unread with user total 3")
	}

	feed.Set(models.RoleUser, 0)
	if feed.State().HasUnread {
		t.Fatal("expected has_unread cleared when both totals are zero")
	}
}

func TestBadgeFeedNotifiesOnChangeOnly(t *testing.T) {
	var states []BadgeState
	feed := NewBadgeFeed(func(s BadgeState) { states = append(states, s) })

	feed.Set(models.RoleUser, 2)
	feed.Set(models.RoleUser, 2) // no-op, same value
	feed.Set(models.RoleProvider, 1)
	feed.Set(models.RoleUser, 0)

	if len(states) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(states))
	}
	last := states[len(states)-1]
	if last.UserTotal != 0 || last.ProviderTotal != 1 || !last.HasUnread {
		t.Fatalf("unexpected final state: %+v", last)
	}
}

func TestBadgeFeedClampsNegativeTotals(t *testing.T) {
	feed := NewBadgeFeed(nil)
	feed.Set(models.RoleProvider, -5)

	state := feed.State()
	if state.ProviderTotal != 0 || state.HasUnread {
		t.Fatalf("expected negative clamped to 0, got %+v", state)
	}
}
