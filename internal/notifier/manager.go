package notifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/anonto42/byteboard/internal/models"
)

// Manager shares one Subscription per owner between that owner's open
// sessions. The first Acquire subscribes, the last Release cancels.
type Manager struct {
	notifier      *Notifier
	deliverer     Deliverer
	perms         PermissionChecker
	selfTestDelay time.Duration
	logger        *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	refs     int
	sub      *Subscription
	selfTest *time.Timer

	// ready is closed once the subscription is up or has failed with err.
	ready chan struct{}
	err   error
}

// ManagerConfig holds session settings.
type ManagerConfig struct {
	// SelfTestDelay is how long after a session starts the self-test event
	// is sent. Zero disables it.
	SelfTestDelay time.Duration
}

// NewManager creates a session manager. perms decides whether a new
// session gets the enable-notifications hint and may be nil.
func NewManager(n *Notifier, deliverer Deliverer, perms PermissionChecker, cfg ManagerConfig, logger *slog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		notifier:      n,
		deliverer:     deliverer,
		perms:         perms,
		selfTestDelay: cfg.SelfTestDelay,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		sessions:      make(map[string]*session),
	}
}

// Acquire registers one more session for ownerID. The store subscription
// is opened outside the manager lock; sessions for the same owner that
// arrive meanwhile wait for it.
func (m *Manager) Acquire(ownerID string) error {
	m.mu.Lock()
	if s, ok := m.sessions[ownerID]; ok {
		s.refs++
		m.mu.Unlock()
		<-s.ready
		return s.err
	}
	s := &session{refs: 1, ready: make(chan struct{})}
	m.sessions[ownerID] = s
	m.mu.Unlock()

	sub, err := m.notifier.Subscribe(m.ctx, ownerID)

	m.mu.Lock()
	if err != nil {
		s.err = err
		if m.sessions[ownerID] == s {
			delete(m.sessions, ownerID)
		}
		close(s.ready)
		m.mu.Unlock()
		return err
	}
	s.sub = sub
	close(s.ready)
	if m.sessions[ownerID] != s {
		// Every session was released, or the manager closed, while subscribing.
		m.mu.Unlock()
		sub.Cancel()
		return nil
	}
	m.mu.Unlock()

	if m.perms != nil && !m.perms.NativeGranted(m.ctx, ownerID) {
		m.send(HintEvent(ownerID, time.Now()))
	}

	if m.selfTestDelay > 0 {
		m.mu.Lock()
		if m.sessions[ownerID] == s {
			s.selfTest = time.AfterFunc(m.selfTestDelay, func() {
				m.send(SelfTestEvent(ownerID, time.Now()))
			})
		}
		m.mu.Unlock()
	}
	return nil
}

// Release drops one session for ownerID. Releasing an owner with no
// sessions is a no-op.
func (m *Manager) Release(ownerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[ownerID]
	if !ok {
		return
	}
	s.refs--
	if s.refs > 0 {
		return
	}
	m.stop(ownerID, s)
}

// Sessions returns the number of open sessions for ownerID.
func (m *Manager) Sessions(ownerID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[ownerID]; ok {
		return s.refs
	}
	return 0
}

// Close cancels every subscription.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ownerID, s := range m.sessions {
		m.stop(ownerID, s)
	}
	m.cancel()
}

// stop ends a session. Caller holds m.mu.
func (m *Manager) stop(ownerID string, s *session) {
	if s.selfTest != nil {
		s.selfTest.Stop()
	}
	if s.sub != nil {
		s.sub.Cancel()
	}
	delete(m.sessions, ownerID)
	m.logger.Info("activity subscription stopped", "owner_id", ownerID)
}

func (m *Manager) send(ev models.NotificationEvent) {
	if err := m.deliverer.Deliver(m.ctx, ev); err != nil {
		m.logger.Warn("session notification failed", "owner_id", ev.TargetOwnerID, "title", ev.Title, "error", err)
	}
}
