// Package fetchagent is a request agent for services that call HTTP APIs on
// behalf of their users. On top of net/http it provides:
//
//   - Normalized responses and a typed error taxonomy keyed by status
//   - Per-attempt timeouts and cancellation through context.Context
//   - At most one in-flight request per cache key; concurrent callers share it
//   - Repeats of failed requests, never after cancellation
//   - A TTL cache of responses (and optionally of failures) that can be
//     serialized and restored, see package cache
//   - Manual cookie forwarding for server environments
//   - Ordered response post-processors and URL rewriting rules
//   - Prometheus metrics and zerolog-backed debug logging
//
// Typical usage:
//
//	agent := fetchagent.New(
//	    fetchagent.WithLanguage("en"),
//	    fetchagent.WithCookieStore(cookie.NewStorage()),
//	)
//	resp, err := agent.Get(ctx, "https://api.example.com/items", map[string]any{"page": 2},
//	    fetchagent.WithRequestTTL(time.Minute),
//	)
//
// Reads (GET, HEAD) are cached and deduplicated by default; writes are not
// unless WithRequestCache(true) is given. The cache key is
// prefix + METHOD + ":" + url + "?" + JSON(data).
package fetchagent
