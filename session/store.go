package session

import (
	"errors"
	"time"

	"github.com/patrickmn/go-cache"

	"storybook/core"
)

// ErrSessionNotFound is returned when an ID is unknown or has expired.
var ErrSessionNotFound = errors.New("session: not found")

// Store keeps sessions in memory with a sliding expiry. Every successful
// lookup pushes the expiry out by the store TTL.
type Store struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewStore creates a Store whose sessions expire after ttl without access.
func NewStore(ttl time.Duration) *Store {
	cleanup := ttl / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}
	return &Store{
		cache: cache.New(ttl, cleanup),
		ttl:   ttl,
	}
}

// Create registers a fresh empty session under a new random ID.
func (st *Store) Create() (*Session, error) {
	id, err := core.GenerateSessionID()
	if err != nil {
		return nil, err
	}
	s := New(id)
	st.cache.Set(id, s, cache.DefaultExpiration)
	return s, nil
}

// Get returns the session for id and refreshes its expiry.
func (st *Store) Get(id string) (*Session, error) {
	x, found := st.cache.Get(id)
	if !found {
		return nil, ErrSessionNotFound
	}
	s := x.(*Session)
	st.cache.Set(id, s, cache.DefaultExpiration)
	return s, nil
}

// GetOrCreate returns the session for id, or a new one when id is empty,
// malformed, unknown or expired. created reports which case applied.
func (st *Store) GetOrCreate(id string) (s *Session, created bool, err error) {
	if core.IsValidSessionID(id) {
		if s, err := st.Get(id); err == nil {
			return s, false, nil
		}
	}
	s, err = st.Create()
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// Delete removes a session. Unknown IDs are ignored.
func (st *Store) Delete(id string) {
	st.cache.Delete(id)
}

// Count returns the number of sessions held, including expired ones not yet
// purged.
func (st *Store) Count() int {
	return st.cache.ItemCount()
}

// TTL is the idle time after which a session is dropped.
func (st *Store) TTL() time.Duration {
	return st.ttl
}

// Flush drops every session.
func (st *Store) Flush() {
	st.cache.Flush()
}
