// Package cache's Engine orchestrates a Storage and a Policy: it enforces
// the capacity bound, drives the eviction loop, and keeps the two
// structures' views of live tokens consistent. It assumes exclusive
// access for the duration of each call — callers that share one Engine
// across goroutines (the server does, see internal/server) must guard it
// with a mutex; nothing inside Engine blocks or yields mid-call.
package cache

// Metrics is a plain counter record owned by one Engine. There is no
// package-level/global state; each Engine has its own.
type Metrics struct {
	HitGet, MissGet       uint64
	HitSet, MissSet       uint64
	HitDelete, MissDelete uint64
	Evictions             uint64
	ConsistencyFaults     uint64
}

// Engine is the cache core: capacity + a Storage + a Policy.
type Engine struct {
	storage  Storage
	policy   Policy
	capacity int
	cas      uint64
	metrics  Metrics
}

// NewEngine returns an Engine bounded at capacity bytes, backed by
// storage and evicting according to policy.
func NewEngine(storage Storage, policy Policy, capacity int) *Engine {
	return &Engine{storage: storage, policy: policy, capacity: capacity}
}

// Capacity returns the current byte budget.
func (e *Engine) Capacity() int { return e.capacity }

// SetCapacity changes the byte budget. If entries currently exceed the
// new bound, the ordinary eviction loop runs immediately to bring size
// back within it; ErrEvictionFailure is returned if it cannot.
func (e *Engine) SetCapacity(capacity int) error {
	e.capacity = capacity
	for e.storage.Size() > e.capacity {
		if err := e.evictNext(); err != nil {
			return err
		}
	}
	return nil
}

// Size reports the storage structure's current live byte total.
func (e *Engine) Size() int { return e.storage.Size() }

// Metrics returns a copy of the engine's counters.
func (e *Engine) Metrics() Metrics { return e.metrics }

// Contains is a thin pass-through to the storage structure.
func (e *Engine) Contains(key Key) bool {
	return e.storage.Contains(key)
}

// Get looks up key. On a hit it counts as a touch for the replacement
// policy.
func (e *Engine) Get(key Key) (Value, bool) {
	tok, entry, ok := e.storage.Get(key)
	if !ok {
		e.metrics.MissGet++
		return Value{}, false
	}
	e.policy.Update(tok)
	e.metrics.HitGet++
	return entry.Value, true
}

// Set installs value at key, evicting entries chosen by the policy until
// the new entry fits within capacity. Returns ErrEvictionFailure if the
// policy runs out of victims before there is room — including the case
// where the new entry alone exceeds capacity, in which case the cache is
// left fully drained and the new value is rejected (already-performed
// evictions are not rolled back).
func (e *Engine) Set(key Key, value []byte) error {
	newEntry := Entry{Key: append(Key(nil), key...), Value: Value{Bytes: value}}

	currentLen := 0
	if _, existing, ok := e.storage.Get(key); ok {
		currentLen = existing.Len()
		e.metrics.HitSet++
	} else {
		e.metrics.MissSet++
	}

	for e.storage.Size()+newEntry.Len()-currentLen > e.capacity {
		if err := e.evictNext(); err != nil {
			return err
		}
		if currentLen > 0 && !e.storage.Contains(key) {
			currentLen = 0 // the entry being overwritten was itself evicted
		}
	}

	e.cas++
	newEntry.Value.CAS = e.cas

	tok, _ := e.storage.Set(newEntry)
	e.policy.Update(tok)
	return nil
}

// Remove deletes key, if present.
func (e *Engine) Remove(key Key) {
	tok, _, ok := e.storage.Remove(key)
	if !ok {
		e.metrics.MissDelete++
		return
	}
	e.policy.Remove(tok)
	e.metrics.HitDelete++
}

// evictNext asks the policy for a victim and removes it from storage.
// A policy victim the storage cannot find is a broken C2/C3 invariant,
// not an ordinary capacity condition; it is counted separately, in
// Metrics.ConsistencyFaults, so callers can tell the two apart.
func (e *Engine) evictNext() error {
	tok, err := e.policy.EvictNext()
	if err != nil {
		return ErrEvictionFailure
	}
	if _, ok := e.storage.RemoveToken(tok); !ok {
		e.metrics.ConsistencyFaults++
		return ErrEvictionFailure
	}
	e.metrics.Evictions++
	return nil
}
