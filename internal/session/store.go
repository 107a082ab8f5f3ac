// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package session tracks which client sessions completed the initialize handshake.
package session

import (
	"sync"
	"time"
)

// Store is a concurrency-safe set of initialized sessions. With a zero TTL
// sessions live until removed; otherwise a session expires TTL after its
// last initialize.
type Store struct {
	ttl      time.Duration
	now      func() time.Time
	sessions sync.Map // id -> time.Time of initialize
}

// NewStore returns an empty store.
func NewStore(ttl time.Duration) *Store {
	return &Store{ttl: ttl, now: time.Now}
}

// Add marks id initialized. Re-adding refreshes its expiry.
func (s *Store) Add(id string) {
	s.sessions.Store(id, s.now())
}

// Initialized reports whether id is initialized and not expired.
// Expired sessions are removed on lookup.
func (s *Store) Initialized(id string) bool {
	v, ok := s.sessions.Load(id)
	if !ok {
		return false
	}
	if s.ttl > 0 && s.now().Sub(v.(time.Time)) > s.ttl {
		s.sessions.CompareAndDelete(id, v)
		return false
	}
	return true
}

// Remove forgets id.
func (s *Store) Remove(id string) {
	s.sessions.Delete(id)
}

// Clear forgets every session.
func (s *Store) Clear() {
	s.sessions.Clear()
}

// Len counts stored sessions, including expired ones not yet looked up.
func (s *Store) Len() int {
	n := 0
	s.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
