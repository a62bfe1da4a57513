// Package memoffsets is an in-memory OffsetStore used by tests;
// cmd/secorgo does not wire it in. It enforces the same committed/lastSeen monotonicity invariant real
// backends must (spec.md §3).
package memoffsets

import (
	"context"
	"sync"

	"github.com/trivago/secorgo/offsetstore"
)

type state struct {
	committed int64
	lastSeen  int64
	hasCommit bool
	hasSeen   bool
}

// Store is a mutex-guarded map; safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	state map[offsetstore.Key]*state
}

func New() *Store {
	return &Store{state: make(map[offsetstore.Key]*state)}
}

func (s *Store) entry(key offsetstore.Key) *state {
	st, ok := s.state[key]
	if !ok {
		st = &state{}
		s.state[key] = st
	}
	return st
}

func (s *Store) GetCommitted(_ context.Context, key offsetstore.Key) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.entry(key)
	return st.committed, st.hasCommit, nil
}

func (s *Store) CommitOffset(_ context.Context, key offsetstore.Key, offset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.entry(key)
	if st.hasCommit && offset < st.committed {
		return nil // committed only ever increases; silently ignore stale writes
	}
	st.committed = offset
	st.hasCommit = true
	return nil
}

func (s *Store) SetLastSeen(_ context.Context, key offsetstore.Key, offset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.entry(key)
	if st.hasSeen && offset < st.lastSeen {
		return nil
	}
	st.lastSeen = offset
	st.hasSeen = true
	return nil
}

func (s *Store) GetLastSeen(_ context.Context, key offsetstore.Key) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.entry(key)
	return st.lastSeen, st.hasSeen, nil
}
