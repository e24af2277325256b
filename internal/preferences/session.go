package preferences

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

var ErrInvalidSessionID = errors.New("session id must be a UUID")

// SessionStore remembers preferences per chat session. Entries are scoped to
// the caller's subject and expire after the configured idle TTL.
type SessionStore struct {
	cache *ttlcache.Cache[string, Preferences]
}

func NewSessionStore(ttl time.Duration, capacity uint64) *SessionStore {
	opts := []ttlcache.Option[string, Preferences]{
		ttlcache.WithTTL[string, Preferences](ttl),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, Preferences](capacity))
	}
	return &SessionStore{cache: ttlcache.New(opts...)}
}

// Start runs expiry cleanup until Stop is called. It blocks.
func (s *SessionStore) Start() {
	s.cache.Start()
}

func (s *SessionStore) Stop() {
	s.cache.Stop()
}

func NewSessionID() string {
	return uuid.NewString()
}

// NormalizeSessionID validates a client-supplied session id. An empty id
// yields a freshly issued one.
func NormalizeSessionID(id string) (string, error) {
	if id == "" {
		return NewSessionID(), nil
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", ErrInvalidSessionID
	}
	return parsed.String(), nil
}

// Load returns a copy of the stored preferences. Reading refreshes the TTL.
func (s *SessionStore) Load(subject, id string) (Preferences, bool) {
	item := s.cache.Get(sessionKey(subject, id))
	if item == nil {
		return Preferences{}, false
	}
	return item.Value().Clone(), true
}

func (s *SessionStore) Save(subject, id string, prefs Preferences) {
	s.cache.Set(sessionKey(subject, id), prefs.Clone(), ttlcache.DefaultTTL)
}

// Forget drops a session and reports whether it existed.
func (s *SessionStore) Forget(subject, id string) bool {
	_, existed := s.cache.GetAndDelete(sessionKey(subject, id))
	return existed
}

func (s *SessionStore) Len() int {
	return s.cache.Len()
}

func sessionKey(subject, id string) string {
	return subject + "/" + id
}
