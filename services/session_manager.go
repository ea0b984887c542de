package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// GatewayFactory builds the gateway scoped to one salon.
type GatewayFactory func(salonID uuid.UUID) Gateway

// SessionManager keeps one MatrixSession per user.
type SessionManager struct {
	gateway  GatewayFactory
	cache    SessionCache
	notifier TransferNotifier
	opts     SessionOptions

	mu       sync.Mutex
	sessions map[uuid.UUID]*MatrixSession
}

func NewSessionManager(gateway GatewayFactory, cache SessionCache, notifier TransferNotifier, opts SessionOptions) *SessionManager {
	return &SessionManager{
		gateway:  gateway,
		cache:    cache,
		notifier: notifier,
		opts:     opts,
		sessions: map[uuid.UUID]*MatrixSession{},
	}
}

// SessionKey is the cache slot of a user's session.
func SessionKey(userID uuid.UUID) string {
	return userID.String()
}

func (m *SessionManager) session(userID, salonID uuid.UUID) (*MatrixSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s, true
	}
	s := NewMatrixSession(SessionKey(userID), m.gateway(salonID), m.cache, m.notifier, m.opts)
	m.sessions[userID] = s
	openSessions.Set(float64(len(m.sessions)))
	return s, false
}

// Open mounts the user's session, restoring it from the cache when the slot
// is still fresh.
func (m *SessionManager) Open(ctx context.Context, userID, salonID uuid.UUID) (*MatrixSession, bool, error) {
	s, _ := m.session(userID, salonID)
	restored, err := s.Mount(ctx)
	if err != nil {
		return nil, false, err
	}
	return s, restored, nil
}

// Session returns the user's session, mounting it first if needed.
func (m *SessionManager) Session(ctx context.Context, userID, salonID uuid.UUID) (*MatrixSession, error) {
	s, existed := m.session(userID, salonID)
	if existed && s.Loaded() {
		return s, nil
	}
	if _, err := s.Mount(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Close unmounts and forgets the user's session. The cache slot stays, so a
// mount within the TTL restores it.
func (m *SessionManager) Close(ctx context.Context, userID uuid.UUID) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	openSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()
	if ok {
		s.Unmount(ctx)
	}
}

// EvictIdle closes sessions not used for longer than maxIdle.
func (m *SessionManager) EvictIdle(ctx context.Context, maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	var idle []uuid.UUID
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastUsed().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.Unlock()

	for _, id := range idle {
		m.Close(ctx, id)
	}
	if len(idle) > 0 {
		log.Printf("[MATRIX] evicted %d idle sessions", len(idle))
	}
	return len(idle)
}

func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Discard closes the user's session and drops its cache slot, so the next
// mount reloads from the gateway.
func (m *SessionManager) Discard(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	delete(m.sessions, userID)
	openSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()
	return m.cache.Clear(ctx, SessionKey(userID))
}
