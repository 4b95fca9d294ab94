package cache

import "errors"

// ErrNothingToEvict is returned by a Policy's EvictNext when it tracks no
// tokens at all. The engine always converts this to ErrEvictionFailure
// before it reaches a caller.
var ErrNothingToEvict = errors.New("cache: nothing to evict")

// ErrEvictionFailure means the engine needed to free capacity but the
// policy had nothing left to evict, or the storage structure could not
// remove a token the policy claimed to be tracking. The latter case is a
// broken C2/C3 invariant rather than an ordinary capacity condition; the
// engine counts it in Metrics.ConsistencyFaults and never panics. Neither
// case is logged: the dispatcher answers the failed write with
// StatusInternalError and the server carries on.
var ErrEvictionFailure = errors.New("cache: eviction failure")
