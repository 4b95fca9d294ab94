package wire

import "github.com/cachewire/cachewire/internal/cache"

// Engine is the subset of *cache.Engine the dispatcher needs. Declaring
// it here (rather than depending on the concrete type) keeps the wire
// package testable with a fake and keeps the dependency direction
// pointing from protocol glue down to the core, never back up.
type Engine interface {
	Get(key cache.Key) (cache.Value, bool)
	Set(key cache.Key, value []byte) error
	Remove(key cache.Key)
	Contains(key cache.Key) bool
}

// Dispatcher maps opcodes to Engine operations and builds the response
// packet. One Dispatcher typically wraps one mutex-guarded Engine shared
// across every connection (see internal/server).
type Dispatcher struct {
	Engine    Engine
	MaxKeyLen int
	MaxValLen int
}

// NewDispatcher returns a Dispatcher enforcing the given key/value length
// bounds against engine.
func NewDispatcher(engine Engine, maxKeyLen, maxValLen int) *Dispatcher {
	return &Dispatcher{Engine: engine, MaxKeyLen: maxKeyLen, MaxValLen: maxValLen}
}

// Dispatch runs one request against the engine and returns the response
// packet to send back. It never returns nil.
func (d *Dispatcher) Dispatch(req *Packet) *Packet {
	resp := NewResponse(req)

	if req.Header.Magic != MagicRequest {
		resp.Header.Status = StatusInternalError
		return resp
	}

	switch req.Header.Opcode {
	case OpGet:
		return d.dispatchGet(req, resp)
	case OpSet:
		return d.dispatchSet(req, resp, alwaysProceed)
	case OpAdd:
		return d.dispatchSet(req, resp, func() (bool, uint16) {
			if d.Engine.Contains(cache.Key(req.Key)) {
				return false, StatusKeyExists
			}
			return true, StatusOK
		})
	case OpReplace:
		return d.dispatchSet(req, resp, func() (bool, uint16) {
			if !d.Engine.Contains(cache.Key(req.Key)) {
				return false, StatusKeyExists
			}
			return true, StatusOK
		})
	case OpDelete:
		return d.dispatchDelete(req, resp)
	default:
		resp.Header.Status = StatusUnknownCommand
		return resp
	}
}

func alwaysProceed() (bool, uint16) { return true, StatusOK }

func (d *Dispatcher) dispatchGet(req, resp *Packet) *Packet {
	if len(req.Extras) > 0 || len(req.Value) > 0 {
		resp.Header.Status = StatusInvalidArguments
		return resp
	}

	v, ok := d.Engine.Get(cache.Key(req.Key))
	if !ok {
		resp.Header.Status = StatusKeyNotFound
		resp.Value = []byte("Not found")
		return resp
	}

	resp.Header.Status = StatusOK
	resp.Value = v.Bytes
	return resp
}

// precondition evaluates whether the SET-family operation should proceed
// (e.g. ADD's "must not already exist" / REPLACE's "must already exist"
// check) and, if not, which status to answer with.
func (d *Dispatcher) dispatchSet(req, resp *Packet, precondition func() (bool, uint16)) *Packet {
	if len(req.Key) == 0 {
		resp.Header.Status = StatusInvalidArguments
		return resp
	}
	if d.MaxKeyLen > 0 && len(req.Key) > d.MaxKeyLen {
		resp.Header.Status = StatusInvalidArguments
		return resp
	}
	if d.MaxValLen > 0 && len(req.Value) > d.MaxValLen {
		resp.Header.Status = StatusInvalidArguments
		return resp
	}

	if ok, status := precondition(); !ok {
		resp.Header.Status = status
		return resp
	}

	if err := d.Engine.Set(cache.Key(req.Key), req.Value); err != nil {
		resp.Header.Status = StatusInternalError
		return resp
	}

	resp.Header.Status = StatusOK
	resp.Header.CAS = 1
	return resp
}

func (d *Dispatcher) dispatchDelete(req, resp *Packet) *Packet {
	if len(req.Extras) > 0 || len(req.Value) > 0 {
		resp.Header.Status = StatusInvalidArguments
		return resp
	}
	d.Engine.Remove(cache.Key(req.Key))
	resp.Header.Status = StatusOK
	return resp
}
