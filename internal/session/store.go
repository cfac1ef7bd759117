// Package session holds per-user state of the mapping app: the last source
// file each browser session uploaded.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ahmednasr/mapping-assistant/internal/models"
)

// CookieName carries the session id.
const CookieName = "mapper_session"

type entry struct {
	snapshot models.SourceSnapshot
	touched  time.Time
}

// Store maps session ids to source snapshots. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewStore returns a store whose entries expire after ttl of inactivity.
// A zero ttl keeps entries forever.
func NewStore(ttl time.Duration) *Store {
	return &Store{entries: map[string]entry{}, ttl: ttl, now: time.Now}
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// Valid reports whether id looks like an id issued by NewID.
func Valid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Put replaces the snapshot of a session. The last upload wins.
func (s *Store) Put(id string, snap models.SourceSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = entry{snapshot: snap, touched: s.now()}
	s.evictLocked()
}

// Get returns the snapshot of a session, if any.
func (s *Store) Get(id string) (models.SourceSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return models.SourceSnapshot{}, false
	}
	if s.expired(e) {
		delete(s.entries, id)
		return models.SourceSnapshot{}, false
	}
	e.touched = s.now()
	s.entries[id] = e
	return e.snapshot, true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) expired(e entry) bool {
	return s.ttl > 0 && s.now().Sub(e.touched) > s.ttl
}

func (s *Store) evictLocked() {
	for id, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, id)
		}
	}
}
