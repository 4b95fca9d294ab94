package cache

import "testing"

func TestClockSecondChanceFullSweepThenEvictsInOriginalOrder(t *testing.T) {
	t.Parallel()
	p := NewClock()

	p.Update(1)
	p.Update(2)
	p.Update(3)

	// Every entry starts referenced, so the first EvictNext call must
	// sweep clearing all three bits before landing back on the first one
	// (now clear) and evicting it.
	got, err := p.EvictNext()
	if err != nil || got != 1 {
		t.Fatalf("evicted %v err=%v, want 1", got, err)
	}

	// Bits are clear now; each further call evicts immediately in order.
	got, err = p.EvictNext()
	if err != nil || got != 2 {
		t.Fatalf("evicted %v err=%v, want 2", got, err)
	}
	got, err = p.EvictNext()
	if err != nil || got != 3 {
		t.Fatalf("evicted %v err=%v, want 3", got, err)
	}
}

func TestClockTouchGrantsSecondChance(t *testing.T) {
	t.Parallel()
	p := NewClock().(*clockPolicy)

	// Both bits start clear, hand at 0: a touch on token 1 alone should
	// save it from the next sweep while token 2 (never re-touched) is
	// evicted immediately.
	p.entries = []clockEntry{{token: 1, ref: false}, {token: 2, ref: false}}
	p.index = map[Token]int{1: 0, 2: 1}
	p.hand = 0

	p.Update(1)

	got, err := p.EvictNext()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 2 {
		t.Fatalf("evicted %v, want 2 (token 1 should have survived its second chance)", got)
	}
}

func TestClockEmptyEvictFails(t *testing.T) {
	t.Parallel()
	p := NewClock()
	if _, err := p.EvictNext(); err != ErrNothingToEvict {
		t.Fatalf("expected ErrNothingToEvict, got %v", err)
	}
}

func TestClockRemoveAdjustsHandBeforeIt(t *testing.T) {
	t.Parallel()
	p := NewClock().(*clockPolicy)

	p.Update(1)
	p.Update(2)
	p.Update(3)
	p.Update(4)

	// Advance the hand past index 1 by clearing two bits.
	p.entries[0].ref = false
	p.entries[1].ref = false
	p.hand = 2

	// Remove token at index 0 (before the hand); hand must shift back so
	// it keeps pointing at the same logical entry (token 3, now at index 1).
	p.Remove(1)
	if p.hand != 1 {
		t.Fatalf("hand = %d, want 1 after removing an entry before it", p.hand)
	}
	if p.entries[p.hand].token != 3 {
		t.Fatalf("hand points at token %v, want 3", p.entries[p.hand].token)
	}
}

func TestClockVisitsEveryTrackedTokenExactlyOnceBeforeRepeating(t *testing.T) {
	t.Parallel()
	p := NewClock()
	n := 20
	for i := 1; i <= n; i++ {
		p.Update(Token(i))
	}

	seen := make(map[Token]bool, n)
	for i := 0; i < n; i++ {
		tok, err := p.EvictNext()
		if err != nil {
			t.Fatalf("unexpected error at step %d: %v", i, err)
		}
		if seen[tok] {
			t.Fatalf("token %v evicted twice", tok)
		}
		seen[tok] = true
	}
	if _, err := p.EvictNext(); err != ErrNothingToEvict {
		t.Fatalf("expected empty policy after evicting all tokens, got err=%v", err)
	}
}
