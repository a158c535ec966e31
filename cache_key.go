package fetchagent

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// DefaultCacheKeyPrefix namespaces agent entries inside a shared store.
const DefaultCacheKeyPrefix = "http."

// CacheKey derives the key under which a request is cached and
// deduplicated: prefix + METHOD + ":" + url + "?" + json(data).
//
// The JSON encoding of data is deterministic for maps (keys are sorted) and
// follows declaration order for structs; slices stay order-sensitive.
func (a *Agent) CacheKey(method, url string, data any) string {
	return buildCacheKey(a.cacheKeyPrefix, method, url, data)
}

func buildCacheKey(prefix, method, url string, data any) string {
	var b strings.Builder
	b.Grow(len(prefix) + len(method) + len(url) + 16)
	b.WriteString(prefix)
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(':')
	b.WriteString(url)
	b.WriteByte('?')
	b.WriteString(stableJSON(data))
	return b.String()
}

func stableJSON(data any) string {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(payload)
}
