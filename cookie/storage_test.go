package cookie

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStorage_ParseAndRender(t *testing.T) {
	s := NewStorage()

	s.ParseSetCookie("session=abc; Path=/; HttpOnly")
	s.ParseSetCookie("theme=dark")
	s.ParseSetCookie("=broken")

	require.Equal(t, "session=abc; theme=dark", s.CookieHeader())

	c, ok := s.Get("session")
	require.True(t, ok)
	require.True(t, c.HttpOnly)
}

func TestStorage_ReplaceAndDelete(t *testing.T) {
	s := NewStorage()
	s.ParseSetCookie("session=abc")
	s.ParseSetCookie("session=def")
	require.Equal(t, "session=def", s.CookieHeader())

	s.ParseSetCookie("session=; Max-Age=0")
	_, ok := s.Get("session")
	require.False(t, ok)
	require.Empty(t, s.CookieHeader())
}

func TestStorage_Expiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStorage(WithClock(func() time.Time { return now }))

	s.ParseSetCookie("short=1; Max-Age=10")
	s.Set(&http.Cookie{Name: "dated", Value: "2", Expires: now.Add(time.Minute)})
	s.Set(&http.Cookie{Name: "stale", Value: "3", Expires: now.Add(-time.Minute)})
	require.Equal(t, "dated=2; short=1", s.CookieHeader())

	now = now.Add(11 * time.Second)
	require.Equal(t, "dated=2", s.CookieHeader())

	now = now.Add(time.Minute)
	require.Empty(t, s.All())
}

func TestStorage_Clear(t *testing.T) {
	s := NewStorage()
	s.ParseSetCookie("a=1")
	s.Delete("missing")
	require.Len(t, s.All(), 1)

	s.Clear()
	require.Empty(t, s.CookieHeader())
}

func TestStorage_MaxAgeOverridesExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStorage(WithClock(func() time.Time { return now }))

	s.ParseSetCookie("session=abc; Max-Age=3600; Expires=Mon, 01 Jan 2001 00:00:00 GMT")
	c, ok := s.Get("session")
	require.True(t, ok)
	require.Equal(t, now.Add(time.Hour), c.Expires)

	now = now.Add(2 * time.Hour)
	_, ok = s.Get("session")
	require.False(t, ok)
}
