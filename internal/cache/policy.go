package cache

// Policy chooses which token to evict next. It knows nothing about keys
// or values — only about tokens it has been told to track via Update and
// to stop tracking via Remove or a successful EvictNext.
type Policy interface {
	// Update records a touch on tok: a GET hit, a SET (insert or
	// overwrite), or the touch the engine applies right after installing
	// a freshly-evicted-for entry. If tok is not yet tracked it starts
	// being tracked.
	Update(tok Token)

	// Remove stops tracking tok, e.g. because the engine is deleting the
	// entry at tok directly (not via eviction).
	Remove(tok Token)

	// EvictNext picks a victim token, stops tracking it, and returns it.
	// Returns ErrNothingToEvict if no token is tracked.
	EvictNext() (Token, error)
}
