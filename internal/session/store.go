// internal/session/store.go

// Package session holds the live interaction state for displayed control
// messages: an in-memory registry with per-key locks, and the state
// machine that drives transitions. Nothing here is durable; the record
// store is the source of truth.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/voicebrief/internal/types"
)

// entry pairs a session context with its lock. The generation number
// changes whenever the key is evicted or recreated, so results from a
// superseded incarnation can be recognized and dropped.
type entry struct {
	mu       sync.Mutex
	sc       *types.SessionContext
	gen      uint64
	evicted  bool
	lastUsed atomic.Int64
}

// Store is the in-process registry of live sessions. Locks are created on
// demand per key; different sessions never contend with each other.
type Store struct {
	mu          sync.Mutex
	entries     map[types.SessionKey]*entry
	gens        map[types.SessionKey]uint64
	idleTimeout time.Duration
}

// NewStore creates a session store that considers a session idle after
// the given timeout. Eviction itself happens when EvictIdle is called.
func NewStore(idleTimeout time.Duration) *Store {
	return &Store{
		entries:     make(map[types.SessionKey]*entry),
		gens:        make(map[types.SessionKey]uint64),
		idleTimeout: idleTimeout,
	}
}

// WithSession runs fn with exclusive access to the session context for
// key. When the key is unknown it either creates a fresh context
// (mayCreate) or fails with types.ErrExpired. The lock is held for the
// duration of fn and released on every exit path; fn must not block on
// network calls.
func (s *Store) WithSession(key types.SessionKey, mayCreate bool, fn func(sc *types.SessionContext, gen uint64) error) error {
	for {
		s.mu.Lock()
		e, ok := s.entries[key]
		if !ok {
			if !mayCreate {
				s.mu.Unlock()
				return types.ErrExpired
			}
			s.gens[key]++
			e = &entry{
				sc:  &types.SessionContext{Key: key, State: types.StateIdle},
				gen: s.gens[key],
			}
			e.lastUsed.Store(time.Now().UnixNano())
			s.entries[key] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		if e.evicted {
			// Lost a race with the sweeper; the registry no longer owns
			// this entry.
			e.mu.Unlock()
			if mayCreate {
				continue
			}
			return types.ErrExpired
		}
		e.lastUsed.Store(time.Now().UnixNano())
		err := fn(e.sc, e.gen)
		e.mu.Unlock()
		return err
	}
}

// Remove evicts the session for key, bumping its generation so any
// in-flight result for the old incarnation is dropped on arrival.
func (s *Store) Remove(key types.SessionKey) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
		s.gens[key]++
	}
	s.mu.Unlock()
	if ok {
		e.mu.Lock()
		e.evicted = true
		e.mu.Unlock()
	}
}

// EvictIdle removes sessions idle past the timeout and returns how many
// were evicted. Sessions with a regeneration in flight may be evicted
// too; the generation bump makes their eventual result stale.
func (s *Store) EvictIdle(now time.Time) int {
	cutoff := now.Add(-s.idleTimeout).UnixNano()

	s.mu.Lock()
	var stale []*entry
	for key, e := range s.entries {
		if e.lastUsed.Load() < cutoff {
			delete(s.entries, key)
			s.gens[key]++
			stale = append(stale, e)
		}
	}
	s.mu.Unlock()

	for _, e := range stale {
		e.mu.Lock()
		e.evicted = true
		e.mu.Unlock()
	}
	return len(stale)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
