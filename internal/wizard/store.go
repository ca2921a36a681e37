package wizard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"truck_notify_bot/internal/domain"
)

// ErrNoSession is returned when the user has no live wizard session.
var ErrNoSession = errors.New("no active wizard session")

// Session is the per-user state of a guided entry.
type Session struct {
	UserID    string            `bson:"user_id" json:"user_id"`
	Step      StepKey           `bson:"step" json:"step"`
	Entry     domain.SheetEntry `bson:"entry" json:"entry"`
	Editing   bool              `bson:"editing" json:"editing"`
	CreatedAt time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time         `bson:"updated_at" json:"updated_at"`
}

// Expired reports whether the session has been idle longer than ttl.
// A non-positive ttl never expires.
func (s Session) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(s.UpdatedAt) > ttl
}

// Store keeps at most one session per user.
type Store interface {
	Get(ctx context.Context, userID string) (Session, error)
	// Create replaces any existing session for the user.
	Create(ctx context.Context, session Session) error
	Update(ctx context.Context, session Session) error
	Delete(ctx context.Context, userID string) error
	Count(ctx context.Context) (int64, error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]Session
}

// NewMemoryStore constructs a MemoryStore; ttl <= 0 disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]Session),
	}
}

func (m *MemoryStore) Get(ctx context.Context, userID string) (Session, error) {
	if ctx == nil {
		return Session{}, errors.New("context is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[userID]
	if !ok {
		return Session{}, ErrNoSession
	}
	if session.Expired(m.now(), m.ttl) {
		delete(m.sessions, userID)
		return Session{}, ErrNoSession
	}
	return session, nil
}

func (m *MemoryStore) Create(ctx context.Context, session Session) error {
	return m.put(ctx, session, false)
}

func (m *MemoryStore) Update(ctx context.Context, session Session) error {
	return m.put(ctx, session, true)
}

func (m *MemoryStore) put(ctx context.Context, session Session, mustExist bool) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if strings.TrimSpace(session.UserID) == "" {
		return errors.New("user id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[session.UserID]; mustExist && !ok {
		return ErrNoSession
	}
	m.sessions[session.UserID] = session
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, userID string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, userID)
	return nil
}

func (m *MemoryStore) Count(ctx context.Context) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var count int64
	for _, session := range m.sessions {
		if !session.Expired(now, m.ttl) {
			count++
		}
	}
	return count, nil
}
