package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/Webizinnovation/ServiceAppBack/internal/inbox"
	"github.com/Webizinnovation/ServiceAppBack/internal/models"
	"go.uber.org/zap"
)

// FeedSink receives live pushes for connected UI clients.
type FeedSink interface {
	PushInbox(viewerID int64, role models.Role, snap inbox.Snapshot)
	PushBadge(viewerID int64, state inbox.BadgeState)
}

type key struct {
	viewerID int64
	role     models.Role
}

type session struct {
	ctrl *inbox.Controller
	stop chan struct{}
}

// Registry owns the live inbox controllers, one per (viewer, role).
// Controllers start lazily on first use and are torn down on logout so
// no subscription outlives its viewer.
type Registry struct {
	store        inbox.Store
	notifier     inbox.Notifier
	sink         FeedSink
	logger       *zap.Logger
	fetchTimeout time.Duration

	mu       sync.Mutex
	sessions map[key]*session
	badges   map[int64]*inbox.BadgeFeed
	closed   bool
}

func NewRegistry(store inbox.Store, notifier inbox.Notifier, sink FeedSink, logger *zap.Logger, fetchTimeout time.Duration) *Registry {
	return &Registry{
		store:        store,
		notifier:     notifier,
		sink:         sink,
		logger:       logger,
		fetchTimeout: fetchTimeout,
		sessions:     make(map[key]*session),
		badges:       make(map[int64]*inbox.BadgeFeed),
	}
}

// Controller returns the live controller for the viewer session,
// starting one if none exists yet.
func (r *Registry) Controller(ctx context.Context, viewerID int64, role models.Role) (*inbox.Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, inbox.ErrClosed
	}

	k := key{viewerID: viewerID, role: role}
	if sess, ok := r.sessions[k]; ok {
		return sess.ctrl, nil
	}

	badge := r.badgeLocked(viewerID)

	cfg := inbox.Config{FetchTimeout: r.fetchTimeout}
	if r.sink != nil {
		cfg.OnUpdate = func(snap inbox.Snapshot) {
			r.sink.PushInbox(viewerID, role, snap)
		}
	}

	ctrl := inbox.NewController(
		r.store,
		r.notifier,
		viewerID,
		role,
		r.logger.With(zap.Int64("viewer_id", viewerID), zap.String("role", string(role))),
		cfg,
	)
	if err := ctrl.Start(ctx); err != nil {
		return nil, err
	}

	sess := &session{ctrl: ctrl, stop: make(chan struct{})}
	r.sessions[k] = sess
	go r.watchBadge(sess, badge, role)

	return ctrl, nil
}

func (r *Registry) watchBadge(sess *session, badge *inbox.BadgeFeed, role models.Role) {
	for {
		select {
		case <-sess.stop:
			return
		case total := <-sess.ctrl.UnreadUpdates():
			badge.Set(role, total)
		}
	}
}

// Badge returns the composed unread indicator for the account.
func (r *Registry) Badge(viewerID int64) inbox.BadgeState {
	r.mu.Lock()
	badge, ok := r.badges[viewerID]
	r.mu.Unlock()

	if !ok {
		return inbox.BadgeState{}
	}
	return badge.State()
}

// Release tears down one role session.
func (r *Registry) Release(viewerID int64, role models.Role) {
	r.mu.Lock()
	k := key{viewerID: viewerID, role: role}
	sess, ok := r.sessions[k]
	if ok {
		delete(r.sessions, k)
	}
	if _, other := r.sessions[key{viewerID: viewerID, role: role.Counterpart()}]; !other {
		delete(r.badges, viewerID)
	}
	r.mu.Unlock()

	if ok {
		close(sess.stop)
		sess.ctrl.Close()
	}
}

// ReleaseAll tears down both role sessions of an account (logout).
func (r *Registry) ReleaseAll(viewerID int64) {
	r.Release(viewerID, models.RoleUser)
	r.Release(viewerID, models.RoleProvider)
}

// Close stops every live session.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[key]*session)
	r.badges = make(map[int64]*inbox.BadgeFeed)
	r.mu.Unlock()

	for _, sess := range sessions {
		close(sess.stop)
		sess.ctrl.Close()
	}
}

func (r *Registry) badgeLocked(viewerID int64) *inbox.BadgeFeed {
	if badge, ok := r.badges[viewerID]; ok {
		return badge
	}

	badge := inbox.NewBadgeFeed(func(state inbox.BadgeState) {
		if r.sink != nil {
			r.sink.PushBadge(viewerID, state)
		}
	})
	r.badges[viewerID] = badge
	return badge
}
