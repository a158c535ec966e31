// Package cookie keeps the cookies of a server-side agent between requests.
package cookie

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Storage is a name-keyed cookie store. It remembers what Set-Cookie headers
// told it and renders a Cookie header from the live entries. Domain and path
// scoping are not applied: one Storage serves one upstream.
type Storage struct {
	mu      sync.RWMutex
	cookies map[string]*http.Cookie
	now     func() time.Time
}

// Option configures a Storage.
type Option func(*Storage)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStorage returns an empty store.
func NewStorage(opts ...Option) *Storage {
	s := &Storage{
		cookies: make(map[string]*http.Cookie),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseSetCookie absorbs one Set-Cookie header value. Malformed values are
// ignored; a cookie that is already expired removes the stored one.
func (s *Storage) ParseSetCookie(header string) {
	c, err := http.ParseSetCookie(header)
	if err != nil {
		return
	}
	s.Set(c)
}

// Set stores c, or removes the cookie of the same name when c is expired.
func (s *Storage) Set(c *http.Cookie) {
	if c == nil || c.Name == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *c
	// Max-Age wins over Expires.
	if c.MaxAge > 0 {
		stored.Expires = s.now().Add(time.Duration(c.MaxAge) * time.Second)
	}
	if s.expired(&stored) {
		delete(s.cookies, c.Name)
		return
	}
	s.cookies[c.Name] = &stored
}

// Get returns the live cookie called name.
func (s *Storage) Get(name string) (*http.Cookie, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cookies[name]
	if !ok || s.expired(c) {
		return nil, false
	}
	clone := *c
	return &clone, true
}

// Delete removes the cookie called name.
func (s *Storage) Delete(name string) {
	s.mu.Lock()
	delete(s.cookies, name)
	s.mu.Unlock()
}

// Clear removes every cookie.
func (s *Storage) Clear() {
	s.mu.Lock()
	s.cookies = make(map[string]*http.Cookie)
	s.mu.Unlock()
}

// All returns the live cookies ordered by name.
func (s *Storage) All() []*http.Cookie {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*http.Cookie, 0, len(s.cookies))
	for _, c := range s.cookies {
		if s.expired(c) {
			continue
		}
		clone := *c
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CookieHeader renders the live cookies as a Cookie request header value.
func (s *Storage) CookieHeader() string {
	cookies := s.All()
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, (&http.Cookie{Name: c.Name, Value: c.Value, Quoted: c.Quoted}).String())
	}
	return strings.Join(parts, "; ")
}

func (s *Storage) expired(c *http.Cookie) bool {
	if c.MaxAge < 0 {
		return true
	}
	return !c.Expires.IsZero() && !c.Expires.After(s.now())
}
