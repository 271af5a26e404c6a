package session

import (
	"context"
	"sync"
	"time"
)

// sweepInterval bounds how often Create scans for expired sessions.
const sweepInterval = time.Minute

type memoryEntry struct {
	sess    Session
	expires time.Time
}

// MemoryStore keeps sessions in process memory. Sessions do not survive a
// restart and are not shared between instances.
type MemoryStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
	sessions  map[string]memoryEntry
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]memoryEntry),
	}
}

func (m *MemoryStore) Create(_ context.Context, sess Session) (Session, error) {
	id, err := newID()
	if err != nil {
		return Session{}, err
	}
	sess.ID = id
	sess.rev = 0
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = m.now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if now.Sub(m.lastSweep) >= sweepInterval {
		m.sweep(now)
	}
	m.sessions[id] = memoryEntry{sess: sess, expires: now.Add(m.ttl)}
	return sess, nil
}

// sweep drops expired entries. The caller holds m.mu.
func (m *MemoryStore) sweep(now time.Time) {
	for id, entry := range m.sessions {
		if now.After(entry.expires) {
			delete(m.sessions, id)
		}
	}
	m.lastSweep = now
}

// Len returns the number of stored sessions, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	if m.now().After(entry.expires) {
		delete(m.sessions, id)
		return Session{}, ErrNotFound
	}
	return entry.sess, nil
}

func (m *MemoryStore) Save(_ context.Context, sess Session) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[sess.ID]
	if !ok || m.now().After(entry.expires) {
		return Session{}, ErrNotFound
	}
	if entry.sess.rev != sess.rev {
		return Session{}, ErrStale
	}
	sess.rev++
	entry.sess = sess
	m.sessions[sess.ID] = entry
	return sess, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) ForgetUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, entry := range m.sessions {
		if entry.sess.UserID != userID {
			continue
		}
		entry.sess.Username = ""
		entry.sess.Role = ""
		entry.sess.rev++
		m.sessions[id] = entry
	}
	return nil
}

func (m *MemoryStore) DeleteUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, entry := range m.sessions {
		if entry.sess.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
