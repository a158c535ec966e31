package cache

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// DefaultTTL is used by Set when no TTL is given.
const DefaultTTL = 30 * time.Minute

// ErrNotSerializable is returned by Serialize in development mode when a
// stored value has no JSON representation.
var ErrNotSerializable = errors.New("cache: value is not serializable")

// Store is an expiring key-value cache. It is safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	entries     map[string]*Entry
	enabled     bool
	defaultTTL  time.Duration
	development bool
	now         func() time.Time
	log         zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithDefaultTTL sets the lifetime used when Set is called without a TTL.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// WithDevelopment makes Serialize fail on values without a JSON
// representation instead of silently skipping them.
func WithDevelopment(development bool) Option {
	return func(s *Store) {
		s.development = development
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used to report skipped entries.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.log = logger
	}
}

// New returns an enabled, empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		entries:    make(map[string]*Entry),
		enabled:    true,
		defaultTTL: DefaultTTL,
		now:        time.Now,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Has reports whether key holds a live entry. Expired entries are evicted.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.liveLocked(key) != nil
}

// Get returns the value stored under key. The value is returned as stored;
// callers that hand it out further are responsible for copying it.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.liveLocked(key)
	if entry == nil {
		return nil, false
	}
	return entry.Value, true
}

func (s *Store) liveLocked(key string) *Entry {
	if !s.enabled {
		return nil
	}
	entry, ok := s.entries[key]
	if !ok {
		return nil
	}
	if entry.IsExpired(s.now()) {
		delete(s.entries, key)
		return nil
	}
	return entry
}

// Set stores value under key. A missing or non-positive ttl selects the
// store's default TTL. Set is a no-op while the store is disabled.
func (s *Store) Set(key string, value any, ttl ...time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return
	}
	lifetime := s.defaultTTL
	if len(ttl) > 0 && ttl[0] > 0 {
		lifetime = ttl[0]
	}
	s.entries[key] = NewEntry(value, lifetime, s.now())
}

// Delete removes key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]*Entry)
	s.mu.Unlock()
}

// Disable clears the store and makes Has report false until Enable.
func (s *Store) Disable() {
	s.mu.Lock()
	s.enabled = false
	s.entries = make(map[string]*Entry)
	s.mu.Unlock()
}

// Enable turns the store back on. It starts empty.
func (s *Store) Enable() {
	s.mu.Lock()
	s.enabled = true
	s.mu.Unlock()
}

// Enabled reports whether the store accepts and serves entries.
func (s *Store) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	return len(s.Keys())
}

// Keys returns the sorted keys of all live entries.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return nil
	}
	now := s.now()
	keys := make([]string, 0, len(s.entries))
	for key, entry := range s.entries {
		if entry.IsExpired(now) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Serialize encodes all live entries as JSON. Values without a JSON
// representation fail the call in development mode and are skipped otherwise.
func (s *Store) Serialize() (string, error) {
	s.mu.Lock()
	now := s.now()
	snapshot := make(map[string]*Entry, len(s.entries))
	for key, entry := range s.entries {
		if !entry.IsExpired(now) {
			snapshot[key] = entry
		}
	}
	s.mu.Unlock()

	out := make(map[string]SerializedEntry, len(snapshot))
	for key, entry := range snapshot {
		if err := CheckSerializable(entry.Value); err != nil {
			if s.development {
				return "", fmt.Errorf("%w: key %q: %v", ErrNotSerializable, key, err)
			}
			s.log.Warn().Str("key", key).Err(err).Msg("skipping cache entry that cannot be serialized")
			continue
		}
		out[key] = entry.Serialize()
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("cache: serialize: %w", err)
	}
	return strings.ReplaceAll(string(data), "</script", `<\/script`), nil
}

// Deserialize loads entries produced by Serialize. Values are kept as
// json.RawMessage; entries are stamped with the current time.
func (s *Store) Deserialize(data string) error {
	var raw map[string]struct {
		Value json.RawMessage `json:"value"`
		TTL   TTL             `json:"ttl"`
	}
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return fmt.Errorf("cache: deserialize: %w", err)
	}

	entries := make(map[string]SerializedEntry, len(raw))
	for key, item := range raw {
		entries[key] = SerializedEntry{Value: item.Value, TTL: item.TTL}
	}
	s.DeserializeEntries(entries)
	return nil
}

// DeserializeEntries loads already decoded entries.
func (s *Store) DeserializeEntries(entries map[string]SerializedEntry) {
	for key, item := range entries {
		s.Set(key, item.Value, time.Duration(item.TTL))
	}
}
