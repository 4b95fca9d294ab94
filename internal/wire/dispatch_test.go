package wire

import (
	"errors"
	"testing"

	"github.com/cachewire/cachewire/internal/cache"
)

// fakeEngine is a minimal in-memory stand-in for *cache.Engine so the
// dispatcher can be tested without the real cache package's eviction
// machinery.
type fakeEngine struct {
	data   map[string][]byte
	setErr error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{data: make(map[string][]byte)}
}

func (f *fakeEngine) Get(key cache.Key) (cache.Value, bool) {
	v, ok := f.data[string(key)]
	if !ok {
		return cache.Value{}, false
	}
	return cache.Value{Bytes: v}, true
}

func (f *fakeEngine) Set(key cache.Key, value []byte) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.data[string(key)] = value
	return nil
}

func (f *fakeEngine) Remove(key cache.Key) { delete(f.data, string(key)) }

func (f *fakeEngine) Contains(key cache.Key) bool {
	_, ok := f.data[string(key)]
	return ok
}

func TestDispatchGetHitAndMiss(t *testing.T) {
	t.Parallel()
	e := newFakeEngine()
	e.data["k"] = []byte("v")
	d := NewDispatcher(e, 0, 0)

	req := NewRequest(OpGet)
	req.Key = []byte("k")
	resp := d.Dispatch(req)
	if resp.Header.Status != StatusOK || string(resp.Value) != "v" {
		t.Fatalf("got status=%#x value=%q, want OK/v", resp.Header.Status, resp.Value)
	}

	req = NewRequest(OpGet)
	req.Key = []byte("missing")
	resp = d.Dispatch(req)
	if resp.Header.Status != StatusKeyNotFound {
		t.Fatalf("got status=%#x, want StatusKeyNotFound", resp.Header.Status)
	}
}

func TestDispatchGetRejectsExtrasOrValue(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(newFakeEngine(), 0, 0)

	req := NewRequest(OpGet)
	req.Key = []byte("k")
	req.Extras = []byte{1}
	if resp := d.Dispatch(req); resp.Header.Status != StatusInvalidArguments {
		t.Fatalf("got status=%#x, want StatusInvalidArguments", resp.Header.Status)
	}
}

func TestDispatchSetSucceedsWithLiteralCAS(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(newFakeEngine(), 0, 0)

	req := NewRequest(OpSet)
	req.Key = []byte("k")
	req.Value = []byte("v")
	resp := d.Dispatch(req)
	if resp.Header.Status != StatusOK || resp.Header.CAS != 1 {
		t.Fatalf("got status=%#x cas=%d, want OK/1", resp.Header.Status, resp.Header.CAS)
	}
}

func TestDispatchSetFamilyRequiresKey(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(newFakeEngine(), 0, 0)

	req := NewRequest(OpSet)
	req.Value = []byte("v")
	if resp := d.Dispatch(req); resp.Header.Status != StatusInvalidArguments {
		t.Fatalf("got status=%#x, want StatusInvalidArguments", resp.Header.Status)
	}
}

// Scenario 5 (spec §8): ADD to an existing key returns 0x0005.
func TestDispatchAddOnExistingKeyFails(t *testing.T) {
	t.Parallel()
	e := newFakeEngine()
	e.data["k"] = []byte("v1")
	d := NewDispatcher(e, 0, 0)

	req := NewRequest(OpAdd)
	req.Key = []byte("k")
	req.Value = []byte("v2")
	resp := d.Dispatch(req)
	if resp.Header.Status != StatusKeyExists {
		t.Fatalf("got status=%#x, want StatusKeyExists", resp.Header.Status)
	}
	if string(e.data["k"]) != "v1" {
		t.Fatalf("existing value overwritten: got %q", e.data["k"])
	}
}

func TestDispatchAddOnNewKeySucceeds(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(newFakeEngine(), 0, 0)

	req := NewRequest(OpAdd)
	req.Key = []byte("k")
	req.Value = []byte("v")
	if resp := d.Dispatch(req); resp.Header.Status != StatusOK {
		t.Fatalf("got status=%#x, want StatusOK", resp.Header.Status)
	}
}

// Scenario 5 (spec §8): REPLACE to a missing key returns 0x0005.
func TestDispatchReplaceOnMissingKeyFails(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(newFakeEngine(), 0, 0)

	req := NewRequest(OpReplace)
	req.Key = []byte("missing")
	req.Value = []byte("v")
	resp := d.Dispatch(req)
	if resp.Header.Status != StatusKeyExists {
		t.Fatalf("got status=%#x, want StatusKeyExists", resp.Header.Status)
	}
}

func TestDispatchReplaceOnExistingKeySucceeds(t *testing.T) {
	t.Parallel()
	e := newFakeEngine()
	e.data["k"] = []byte("v1")
	d := NewDispatcher(e, 0, 0)

	req := NewRequest(OpReplace)
	req.Key = []byte("k")
	req.Value = []byte("v2")
	if resp := d.Dispatch(req); resp.Header.Status != StatusOK {
		t.Fatalf("got status=%#x, want StatusOK", resp.Header.Status)
	}
	if string(e.data["k"]) != "v2" {
		t.Fatalf("got %q, want v2", e.data["k"])
	}
}

func TestDispatchDeleteAlwaysOK(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(newFakeEngine(), 0, 0)

	req := NewRequest(OpDelete)
	req.Key = []byte("never-existed")
	if resp := d.Dispatch(req); resp.Header.Status != StatusOK {
		t.Fatalf("got status=%#x, want StatusOK", resp.Header.Status)
	}
}

func TestDispatchUnknownOpcode(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(newFakeEngine(), 0, 0)

	req := NewRequest(0xFF)
	req.Key = []byte("k")
	if resp := d.Dispatch(req); resp.Header.Status != StatusUnknownCommand {
		t.Fatalf("got status=%#x, want StatusUnknownCommand", resp.Header.Status)
	}
}

func TestDispatchBadMagic(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(newFakeEngine(), 0, 0)

	req := NewRequest(OpGet)
	req.Header.Magic = 0x00
	if resp := d.Dispatch(req); resp.Header.Status != StatusInternalError {
		t.Fatalf("got status=%#x, want StatusInternalError", resp.Header.Status)
	}
}

func TestDispatchRejectsOversizedKeyAndValue(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(newFakeEngine(), 4, 4)

	req := NewRequest(OpSet)
	req.Key = []byte("toolongkey")
	req.Value = []byte("v")
	if resp := d.Dispatch(req); resp.Header.Status != StatusInvalidArguments {
		t.Fatalf("got status=%#x, want StatusInvalidArguments for oversized key", resp.Header.Status)
	}

	req = NewRequest(OpSet)
	req.Key = []byte("k")
	req.Value = []byte("toolongvalue")
	if resp := d.Dispatch(req); resp.Header.Status != StatusInvalidArguments {
		t.Fatalf("got status=%#x, want StatusInvalidArguments for oversized value", resp.Header.Status)
	}
}

func TestDispatchSetEngineFailureIsInternalError(t *testing.T) {
	t.Parallel()
	e := newFakeEngine()
	e.setErr = errors.New("boom")
	d := NewDispatcher(e, 0, 0)

	req := NewRequest(OpSet)
	req.Key = []byte("k")
	req.Value = []byte("v")
	if resp := d.Dispatch(req); resp.Header.Status != StatusInternalError {
		t.Fatalf("got status=%#x, want StatusInternalError", resp.Header.Status)
	}
}
