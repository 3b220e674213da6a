package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bag-service/internal/models"
	"bag-service/internal/store"
	"bag-service/internal/util"

	"go.uber.org/zap"
)

// DefaultIdleTimeout is how long an unused session stays open
const DefaultIdleTimeout = 30 * time.Minute

type session struct {
	svc      *BagService
	lastUsed time.Time
}

// Manager holds one bag service per session over a shared storage backend
type Manager struct {
	backend     store.Storage
	cfg         Config
	idleTimeout time.Duration
	now         func() time.Time
	logger      *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithIdleTimeout sets how long a session may go unused before EvictIdle
// closes it. Zero keeps sessions open until closed explicitly.
func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.idleTimeout = d
	}
}

// WithClock replaces the clock used for idle tracking
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a session manager. Each session's keys live under "<session id>:".
func NewManager(backend store.Storage, cfg Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		backend:     backend,
		cfg:         cfg,
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
		logger:      util.GetLogger(),
		sessions:    make(map[string]*session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the session's bag service, creating it on first use
func (m *Manager) Get(ctx context.Context, sessionID string) (*BagService, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[sessionID]; ok {
		sess.lastUsed = m.now()
		return sess.svc, nil
	}

	svc, err := NewBagService(ctx, sessionID, store.WithPrefix(m.backend, sessionID+":"), m.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	m.sessions[sessionID] = &session{svc: svc, lastUsed: m.now()}
	util.ActiveSessions.Inc()
	m.logger.Debug("Session opened", zap.String("session_id", sessionID))
	return svc, nil
}

// Close tears a session's bag service down. Its persisted bag and orders are kept.
func (m *Manager) Close(sessionID string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if !ok {
		return false
	}

	m.closeSession(sessionID, sess.svc)
	return true
}

// EvictIdle closes sessions unused for longer than the idle timeout and
// returns how many were closed. Sessions placing an order are kept.
func (m *Manager) EvictIdle() int {
	if m.idleTimeout <= 0 {
		return 0
	}

	cutoff := m.now().Add(-m.idleTimeout)
	evicted := make(map[string]*BagService)

	m.mu.Lock()
	for id, sess := range m.sessions {
		if sess.lastUsed.After(cutoff) {
			continue
		}
		if sess.svc.Status().Status == models.OrderStatusPlacing {
			continue
		}
		evicted[id] = sess.svc
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for id, svc := range evicted {
		m.closeSession(id, svc)
	}
	if len(evicted) > 0 {
		m.logger.Info("Idle sessions evicted", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}

// Run evicts idle sessions every interval until ctx is done
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.EvictIdle()
		}
	}
}

// Len returns the number of open sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll tears every session down
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for id, sess := range sessions {
		m.closeSession(id, sess.svc)
	}
	m.logger.Info("All sessions closed", zap.Int("count", len(sessions)))
}

func (m *Manager) closeSession(sessionID string, svc *BagService) {
	if svc.cartDirty() {
		m.logger.Warn("Closing session with an unsaved bag", zap.String("session_id", sessionID))
	}
	svc.Close()
	util.ActiveSessions.Dec()
	m.logger.Debug("Session closed", zap.String("session_id", sessionID))
}
