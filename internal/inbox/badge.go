package inbox

import (
	"sync"

	"github.com/Webizinnovation/ServiceAppBack/internal/models"
)

// BadgeState is the shell-level unread indicator for one account: the
// two role-scoped totals composed into a single has-any-unread signal.
type BadgeState struct {
	UserTotal     int  `json:"user_total"`
	ProviderTotal int  `json:"provider_total"`
	HasUnread     bool `json:"has_unread"`
}

// BadgeFeed merges the per-role unread totals of one account. Each
// session controller is the single writer for its own role; readers
// observe composed state.
type BadgeFeed struct {
	mu       sync.Mutex
	totals   map[models.Role]int
	onChange func(BadgeState)
}

func NewBadgeFeed(onChange func(BadgeState)) *BadgeFeed {
	return &BadgeFeed{
		totals:   make(map[models.Role]int),
		onChange: onChange,
	}
}

func (b *BadgeFeed) Set(role models.Role, total int) {
	if total < 0 {
		total = 0
	}

	b.mu.Lock()
	if b.totals[role] == total {
		b.mu.Unlock()
		return
	}
	b.totals[role] = total
	state := b.stateLocked()
	b.mu.Unlock()

	if b.onChange != nil {
		b.onChange(state)
	}
}

func (b *BadgeFeed) State() BadgeState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *BadgeFeed) stateLocked() BadgeState {
	state := BadgeState{
		UserTotal:     b.totals[models.RoleUser],
		ProviderTotal: b.totals[models.RoleProvider],
	}
	state.HasUnread = state.UserTotal > 0 || state.ProviderTotal > 0
	return state
}
