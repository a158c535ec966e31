package cache

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Set(ms int64) { c.now = time.UnixMilli(ms) }

func newTestStore(clock *fakeClock, opts ...Option) *Store {
	return New(append([]Option{WithClock(clock.Now)}, opts...)...)
}

func TestStore_TTLScenario(t *testing.T) {
	clock := &fakeClock{}
	clock.Set(1000)
	s := newTestStore(clock)

	s.Set("a", 123, time.Second)

	clock.Set(1500)
	require.True(t, s.Has("a"))
	v, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, 123, v)

	clock.Set(2000)
	require.True(t, s.Has("a"), "entry must still be live exactly at created+ttl")

	clock.Set(2001)
	require.False(t, s.Has("a"))
	_, ok = s.Get("a")
	require.False(t, ok)
}

func TestStore_ExpiredEntryIsEvictedOnHas(t *testing.T) {
	clock := &fakeClock{}
	clock.Set(0)
	s := newTestStore(clock)
	s.Set("k", "v", 10*time.Millisecond)

	clock.Set(11)
	require.False(t, s.Has("k"))

	s.mu.Lock()
	_, present := s.entries["k"]
	s.mu.Unlock()
	require.False(t, present)
}

func TestStore_DefaultTTL(t *testing.T) {
	clock := &fakeClock{}
	clock.Set(0)
	s := newTestStore(clock, WithDefaultTTL(time.Minute))
	s.Set("k", "v")

	clock.Set(time.Minute.Milliseconds())
	require.True(t, s.Has("k"))
	clock.Set(time.Minute.Milliseconds() + 1)
	require.False(t, s.Has("k"))
}

func TestStore_InfinityNeverExpires(t *testing.T) {
	clock := &fakeClock{}
	clock.Set(0)
	s := newTestStore(clock)
	s.Set("forever", "v", Infinity)

	clock.now = time.Now().AddDate(100, 0, 0)
	require.True(t, s.Has("forever"))
}

func TestStore_DeleteAndClear(t *testing.T) {
	s := New()
	s.Set("a", 1)
	s.Set("b", 2)

	s.Delete("a")
	require.False(t, s.Has("a"))
	require.True(t, s.Has("b"))

	s.Clear()
	require.False(t, s.Has("b"))
	require.Zero(t, s.Len())
}

func TestStore_DisableEnable(t *testing.T) {
	s := New()
	s.Set("a", 1)

	s.Disable()
	require.False(t, s.Enabled())
	require.False(t, s.Has("a"))

	s.Set("b", 2)
	require.False(t, s.Has("b"), "set must be a no-op while disabled")

	s.Enable()
	require.True(t, s.Enabled())
	require.False(t, s.Has("a"), "re-enabling must not restore the old snapshot")
	require.Empty(t, s.Keys())

	s.Set("c", 3)
	require.True(t, s.Has("c"))
}

func TestStore_SerializeRoundTrip(t *testing.T) {
	clock := &fakeClock{}
	clock.Set(5000)
	src := newTestStore(clock)
	src.Set("num", 42, time.Second)
	src.Set("obj", map[string]any{"a": []any{1, "two"}}, time.Minute)
	src.Set("forever", "x", Infinity)
	src.Set("gone", "y", time.Millisecond)

	clock.Set(5002)
	data, err := src.Serialize()
	require.NoError(t, err)

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(data), &decoded))
	require.NotContains(t, decoded, "gone")
	require.Equal(t, "Infinity", decoded["forever"]["ttl"])
	require.EqualValues(t, 1000, decoded["num"]["ttl"])

	dst := newTestStore(clock)
	require.NoError(t, dst.Deserialize(data))

	for _, key := range []string{"num", "obj", "forever"} {
		require.True(t, dst.Has(key), key)
	}
	require.False(t, dst.Has("gone"))

	raw, ok := dst.Get("num")
	require.True(t, ok)
	require.JSONEq(t, "42", string(raw.(json.RawMessage)))

	raw, ok = dst.Get("obj")
	require.True(t, ok)
	require.JSONEq(t, `{"a":[1,"two"]}`, string(raw.(json.RawMessage)))

	again, err := dst.Serialize()
	require.NoError(t, err)
	require.JSONEq(t, data, again)
}

func TestStore_SerializeEscapesScriptTags(t *testing.T) {
	s := New()
	s.Set("html", "</script><script>alert(1)</script>")

	data, err := s.Serialize()
	require.NoError(t, err)
	require.NotContains(t, strings.ToLower(data), "</script")
}

func TestStore_SerializeUnserializableValue(t *testing.T) {
	values := map[string]any{
		"func":    func() {},
		"chan":    make(chan int),
		"time":    time.Now(),
		"pattern": regexp.MustCompile("a+"),
		"context": context.Background(),
		"nested":  map[string]any{"list": []any{1, func() {}}},
	}

	for name, bad := range values {
		t.Run(name, func(t *testing.T) {
			dev := New(WithDevelopment(true))
			dev.Set("good", "ok")
			dev.Set("bad", bad)
			_, err := dev.Serialize()
			require.ErrorIs(t, err, ErrNotSerializable)

			prod := New()
			prod.Set("good", "ok")
			prod.Set("bad", bad)
			data, err := prod.Serialize()
			require.NoError(t, err)

			var decoded map[string]json.RawMessage
			require.NoError(t, json.Unmarshal([]byte(data), &decoded))
			require.Contains(t, decoded, "good")
			require.NotContains(t, decoded, "bad")
		})
	}
}

func TestStore_SerializeSkipsJSONIgnoredFields(t *testing.T) {
	type envelope struct {
		Status int    `json:"status"`
		Hook   func() `json:"-"`
	}

	s := New(WithDevelopment(true))
	s.Set("k", &envelope{Status: 200, Hook: func() {}})

	data, err := s.Serialize()
	require.NoError(t, err)
	require.Contains(t, data, `"status":200`)
}

func TestStore_DeserializeInvalid(t *testing.T) {
	s := New()
	require.Error(t, s.Deserialize("not json"))
	require.Error(t, s.Deserialize(`{"k":{"value":1,"ttl":"forever"}}`))
}
