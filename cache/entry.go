package cache

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// Infinity marks an entry that never expires.
const Infinity time.Duration = math.MaxInt64

const infinityLiteral = "Infinity"

// Entry is a single cached value with its lifetime.
type Entry struct {
	Value   any
	TTL     time.Duration
	Created time.Time
}

// NewEntry creates an entry created at the given instant.
func NewEntry(value any, ttl time.Duration, created time.Time) *Entry {
	return &Entry{Value: value, TTL: ttl, Created: created}
}

// IsExpired reports whether the entry is past its lifetime at now.
func (e *Entry) IsExpired(now time.Time) bool {
	if e.TTL == Infinity {
		return false
	}
	return now.After(e.Created.Add(e.TTL))
}

// Serialize returns the wire form of the entry.
func (e *Entry) Serialize() SerializedEntry {
	return SerializedEntry{Value: e.Value, TTL: TTL(e.TTL)}
}

// SerializedEntry is the JSON shape of one entry in a serialized store.
type SerializedEntry struct {
	Value any `json:"value"`
	TTL   TTL `json:"ttl"`
}

// TTL encodes a lifetime as integer milliseconds, or the string "Infinity"
// for entries that never expire.
type TTL time.Duration

// MarshalJSON implements json.Marshaler.
func (t TTL) MarshalJSON() ([]byte, error) {
	if time.Duration(t) == Infinity {
		return []byte(`"` + infinityLiteral + `"`), nil
	}
	return []byte(strconv.FormatInt(time.Duration(t).Milliseconds(), 10)), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *TTL) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var literal string
		if err := json.Unmarshal(data, &literal); err != nil {
			return err
		}
		if literal != infinityLiteral {
			return fmt.Errorf("cache: invalid ttl %q", literal)
		}
		*t = TTL(Infinity)
		return nil
	}

	var ms float64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("cache: invalid ttl %s: %w", data, err)
	}
	*t = TTL(time.Duration(ms * float64(time.Millisecond)))
	return nil
}
