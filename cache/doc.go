// Package cache implements the expiring key-value store backing the agent's
// response cache.
//
// Entries carry their own TTL and creation time and are evicted lazily: an
// expired entry stays in memory until the next Has or Get touches it. There
// is no background sweeper.
//
// A Store can be serialized to a JSON document of the form
//
//	{"key": {"value": ..., "ttl": 60000}, "other": {"value": ..., "ttl": "Infinity"}}
//
// and restored on a fresh Store with Deserialize, which lets a server hand its
// warm cache to a second process (or embed it in an HTML bootstrap payload).
package cache
