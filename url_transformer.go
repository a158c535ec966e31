package fetchagent

import (
	"strings"
	"sync"
)

// URLTransformer rewrites request URLs before they hit the network, e.g. to
// route a public API host to an internal one on the server.
type URLTransformer interface {
	Transform(url string) string
}

// URLTransformerFunc adapts a function to URLTransformer.
type URLTransformerFunc func(string) string

// Transform implements URLTransformer.
func (f URLTransformerFunc) Transform(url string) string { return f(url) }

type urlRule struct {
	pattern     string
	replacement string
}

// URLRules replaces every occurrence of each pattern with its replacement,
// applying rules in the order they were added.
type URLRules struct {
	mu    sync.RWMutex
	rules []urlRule
}

// NewURLRules returns an empty rule set.
func NewURLRules() *URLRules {
	return &URLRules{}
}

// AddRule appends a rule and returns the receiver for chaining.
func (r *URLRules) AddRule(pattern, replacement string) *URLRules {
	r.mu.Lock()
	r.rules = append(r.rules, urlRule{pattern: pattern, replacement: replacement})
	r.mu.Unlock()
	return r
}

// Clear drops all rules.
func (r *URLRules) Clear() *URLRules {
	r.mu.Lock()
	r.rules = nil
	r.mu.Unlock()
	return r
}

// Transform implements URLTransformer.
func (r *URLRules) Transform(url string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rule := range r.rules {
		if rule.pattern == "" {
			continue
		}
		url = strings.ReplaceAll(url, rule.pattern, rule.replacement)
	}
	return url
}
