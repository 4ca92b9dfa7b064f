package session

import (
	"context"
	"sync"
	"time"

	"ledger-reconciliation-service/pkg/errors"
)

// DefaultTTL is how long an untouched session is kept.
const DefaultTTL = 24 * time.Hour

// Store persists session states. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the state saved under id. Missing ids fail with
	// CodeSessionNotFound and expired ones with CodeSessionExpired.
	Get(ctx context.Context, id string) (*State, error)
	// Save writes s and restarts its expiry clock.
	Save(ctx context.Context, s *State) error
	// Delete removes id. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
	// Purge removes every expired state and returns how many were removed.
	Purge(ctx context.Context) (int, error)
	Close() error
}

// Compile-time checks
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore keeps encoded states in a map.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an in-memory store. A non-positive ttl means
// DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	entry, ok := m.entries[id]
	m.mu.RUnlock()

	if !ok {
		return nil, errors.SessionError(errors.CodeSessionNotFound, id, nil)
	}
	if !m.now().Before(entry.expiresAt) {
		// a Save may have refreshed the entry since the read lock was released
		m.mu.Lock()
		entry, ok = m.entries[id]
		expired := ok && !m.now().Before(entry.expiresAt)
		if expired {
			delete(m.entries, id)
		}
		m.mu.Unlock()

		if !ok {
			return nil, errors.SessionError(errors.CodeSessionNotFound, id, nil)
		}
		if expired {
			return nil, errors.SessionError(errors.CodeSessionExpired, id, nil)
		}
	}
	return Decode(entry.data)
}

func (m *MemoryStore) Save(ctx context.Context, s *State) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.entries[s.ID] = memoryEntry{data: data, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return ctx.Err()
}

func (m *MemoryStore) Purge(ctx context.Context) (int, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed, ctx.Err()
}

// Len returns the number of stored states, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryStore) Close() error { return nil }
