package singleflight

import (
	"context"
	"sync"
)

// Group tracks in-flight calls by key so that concurrent callers asking for
// the same key share a single execution. A key is released the moment its
// call settles; results are not remembered afterwards.
type Group struct {
	mu sync.Mutex
	m  map[string]*call
}

type call struct {
	done chan struct{}
	val  interface{}
	err  error
}

// Lookup is consulted under the group lock after the in-flight check and
// before a new call is registered. Returning ok=true short-circuits Do.
type Lookup func() (val interface{}, err error, ok bool)

// New creates a new Group.
func New() *Group {
	return &Group{
		m: make(map[string]*call),
	}
}

// Do executes fn for key unless a call for key is already in flight, in
// which case it waits for that call (or ctx) and returns its result with
// shared=true. lookup may be nil.
func (g *Group) Do(ctx context.Context, key string, lookup Lookup, fn func() (interface{}, error)) (val interface{}, err error, shared bool) {
	g.mu.Lock()
	if c, ok := g.m[key]; ok {
		g.mu.Unlock()
		return g.wait(ctx, c)
	}

	if lookup != nil {
		if v, lookupErr, hit := lookup(); hit {
			g.mu.Unlock()
			return v, lookupErr, false
		}
	}

	c := &call{done: make(chan struct{}), err: ErrOwnerPanicked}
	g.m[key] = c
	g.mu.Unlock()

	defer g.finish(key, c)
	c.val, c.err = fn()
	return c.val, c.err, false
}

func (g *Group) wait(ctx context.Context, c *call) (interface{}, error, bool) {
	select {
	case <-c.done:
		return c.val, c.err, true
	case <-ctx.Done():
		return nil, ctx.Err(), true
	}
}

func (g *Group) finish(key string, c *call) {
	g.mu.Lock()
	if g.m[key] == c {
		delete(g.m, key)
	}
	g.mu.Unlock()
	close(c.done)
}

// InFlight reports whether a call for key is currently running.
func (g *Group) InFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.m[key]
	return ok
}

// Len returns the number of in-flight keys.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}
