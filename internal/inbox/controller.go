package inbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Webizinnovation/ServiceAppBack/internal/models"
	"go.uber.org/zap"
)

type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateRefreshing State = "refreshing"
	StateError      State = "error"
)

type Filter string

const (
	FilterAll    Filter = "all"
	FilterUnread Filter = "unread"
	FilterRead   Filter = "read"
)

func (f Filter) Valid() bool {
	return f == FilterAll || f == FilterUnread || f == FilterRead
}

// Snapshot is what the UI shell sees: the filtered conversation list
// and the unread total, taken from the same applied generation.
type Snapshot struct {
	State         State                     `json:"state"`
	Filter        Filter                    `json:"filter"`
	Conversations []models.ConversationView `json:"conversations"`
	TotalUnread   int                       `json:"total_unread"`
	Error         string                    `json:"error,omitempty"`
}

type Config struct {
	// FetchTimeout bounds one aggregation fetch; expiry surfaces as a
	// fetch error. Zero means no bound.
	FetchTimeout time.Duration
	// OnUpdate is invoked after every applied state change, outside the
	// controller lock.
	OnUpdate func(Snapshot)
}

// Controller owns one viewer session's conversation list: it serializes
// aggregation passes, coalesces refresh triggers, and guards against
// stale passes applying over newer ones.
type Controller struct {
	viewerID int64
	role     models.Role
	agg      *Aggregator
	unread   *UnreadCounter
	marker   *ReadMarker
	sub      *Subscriber
	logger   *zap.Logger

	fetchTimeout time.Duration
	onUpdate     func(Snapshot)

	refreshCh chan struct{}
	cancel    context.CancelFunc
	done      chan struct{}
	firstPass chan struct{}
	firstOnce sync.Once
	seq       atomic.Uint64

	mu      sync.Mutex
	state   State
	filter  Filter
	views   []models.ConversationView
	lastErr error
	applied uint64
	closed  bool
	started bool
}

func NewController(store Store, notifier Notifier, viewerID int64, role models.Role, logger *zap.Logger, cfg Config) *Controller {
	unread := NewUnreadCounter()
	c := &Controller{
		viewerID:     viewerID,
		role:         role,
		agg:          NewAggregator(store, logger),
		unread:       unread,
		marker:       NewReadMarker(store, unread, logger),
		logger:       logger,
		fetchTimeout: cfg.FetchTimeout,
		onUpdate:     cfg.OnUpdate,
		refreshCh:    make(chan struct{}, 1),
		done:         make(chan struct{}),
		firstPass:    make(chan struct{}),
		state:        StateIdle,
		filter:       FilterAll,
	}
	c.sub = NewSubscriber(notifier, c.requestRefresh, logger)
	return c
}

// Start begins the first load and the aggregation loop. Live updates
// are best-effort: if the room-stream subscription cannot be set up the
// list still works through manual refresh.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.state = StateLoading
	c.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel

	if err := c.sub.Start(runCtx, c.viewerID, c.role); err != nil {
		c.logger.Warn("inbox: live updates unavailable, manual refresh only",
			zap.Int64("viewer_id", c.viewerID),
			zap.String("role", string(c.role)),
			zap.Error(err),
		)
	}

	go c.run(runCtx)
	c.requestRefresh()
	return nil
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.refreshCh:
			c.runPass(ctx)
		}
	}
}

func (c *Controller) runPass(ctx context.Context) {
	gen := c.seq.Add(1)

	fetchCtx := ctx
	if c.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, c.fetchTimeout)
		defer cancel()
	}

	result, err := c.agg.Aggregate(fetchCtx, c.viewerID, c.role)

	c.mu.Lock()
	if c.closed || gen <= c.applied {
		// A newer pass already landed; this one is stale.
		c.mu.Unlock()
		return
	}
	c.applied = gen
	c.firstOnce.Do(func() { close(c.firstPass) })

	if err != nil {
		c.state = StateError
		c.lastErr = err
		c.mu.Unlock()
		c.logger.Error("inbox: aggregation pass failed",
			zap.Int64("viewer_id", c.viewerID),
			zap.String("role", string(c.role)),
			zap.Error(err),
		)
		c.push()
		return
	}

	// Conversation list and unread counts land under one lock so no
	// reader ever pairs a new list with old counts.
	c.views = result.Views
	c.unread.Recompute(result.Unread)
	c.state = StateReady
	c.lastErr = nil
	c.mu.Unlock()

	c.sub.UpdateRooms(ctx, result.RoomIDs)
	c.push()
}

// requestRefresh coalesces: if a refresh is already queued or running,
// the trigger is dropped and the pending pass picks up the change.
func (c *Controller) requestRefresh() {
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

// Refresh is the manual pull-to-refresh path. From Error it acts as the
// retry affordance.
func (c *Controller) Refresh() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	switch c.state {
	case StateReady:
		c.state = StateRefreshing
	case StateError, StateIdle:
		c.state = StateLoading
	}
	c.mu.Unlock()

	c.push()
	c.requestRefresh()
}

// SelectRoom runs the read-marking batch for the room and returns the
// row the caller navigates into. The view is returned even when the
// unread query failed (read-state is a courtesy, not a precondition);
// the error still reports that the marking did not succeed. A
// concurrent second select of the same room returns ErrMarkInFlight
// with the view and does no extra work.
func (c *Controller) SelectRoom(ctx context.Context, roomID int64) (*models.ConversationView, ReadReceipt, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ReadReceipt{}, ErrClosed
	}
	var view *models.ConversationView
	for i := range c.views {
		if c.views[i].RoomID == roomID {
			copied := c.views[i]
			view = &copied
			break
		}
	}
	c.mu.Unlock()

	if view == nil {
		return nil, ReadReceipt{}, ErrRoomNotFound
	}

	receipt, err := c.marker.MarkRoomRead(ctx, roomID, c.role.Counterpart())
	if err == nil || isPartialMark(err) {
		c.mu.Lock()
		for i := range c.views {
			if c.views[i].RoomID == roomID {
				c.views[i].UnreadCount = 0
			}
		}
		c.mu.Unlock()
		view.UnreadCount = 0
		c.push()
	}

	// Feedback edge: confirm the optimistic reset with a real pass.
	c.requestRefresh()
	return view, receipt, err
}

func isPartialMark(err error) bool {
	var partial *PartialReadMarkError
	return errors.As(err, &partial)
}

// SetFilter switches the tab. Purely local; never fetches.
func (c *Controller) SetFilter(f Filter) {
	if !f.Valid() {
		return
	}

	c.mu.Lock()
	changed := c.filter != f
	c.filter = f
	c.mu.Unlock()

	if changed {
		c.push()
	}
}

// WaitFirstPass blocks until the first aggregation pass has been applied
// (successfully or not), or the context expires.
func (c *Controller) WaitFirstPass(ctx context.Context) error {
	select {
	case <-c.firstPass:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:         c.state,
		Filter:        c.filter,
		Conversations: filterViews(c.views, c.filter),
		TotalUnread:   c.unread.Total(),
	}
	if c.lastErr != nil {
		snap.Error = c.lastErr.Error()
	}
	return snap
}

func (c *Controller) TotalUnread() int {
	return c.unread.Total()
}

// UnreadUpdates is the published badge value for this session. Single
// writer (the controller), conflated for slow readers.
func (c *Controller) UnreadUpdates() <-chan int {
	return c.unread.Updates()
}

// Close tears the session down: subscriptions released, loop stopped,
// late results discarded. Safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	started := c.started
	c.mu.Unlock()

	c.sub.Close()
	if started {
		c.cancel()
		<-c.done
	}
}

func (c *Controller) push() {
	if c.onUpdate == nil {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.onUpdate(snap)
}

func filterViews(views []models.ConversationView, f Filter) []models.ConversationView {
	out := make([]models.ConversationView, 0, len(views))
	for _, v := range views {
		switch f {
		case FilterUnread:
			if v.UnreadCount == 0 {
				continue
			}
		case FilterRead:
			if v.UnreadCount > 0 {
				continue
			}
		}
		out = append(out, v)
	}
	return out
}
