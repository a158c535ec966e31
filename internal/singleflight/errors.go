package singleflight

import "errors"

// ErrOwnerPanicked is delivered to waiters when the goroutine running the
// shared call panics before producing a result.
var ErrOwnerPanicked = errors.New("singleflight: shared call panicked")
