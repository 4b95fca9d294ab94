package cache

import "container/list"

// lruPolicy is the least-recently-used replacement policy: an intrusive
// doubly-linked list ordered by recency of touch, with a map from token
// to its list element for O(1) Update/Remove — the same
// list.List-plus-back-pointer-map shape
// laplaque/internal/anonymizer/s3fifo_cache.go uses for its S and M
// FIFO queues, specialized here to a single recency-ordered queue.
type lruPolicy struct {
	order *list.List
	elems map[Token]*list.Element
}

// NewLRU returns a Policy implementing least-recently-used eviction.
func NewLRU() Policy {
	return &lruPolicy{
		order: list.New(),
		elems: make(map[Token]*list.Element),
	}
}

func (p *lruPolicy) Update(tok Token) {
	if e, ok := p.elems[tok]; ok {
		p.order.MoveToBack(e)
		return
	}
	p.elems[tok] = p.order.PushBack(tok)
}

func (p *lruPolicy) Remove(tok Token) {
	e, ok := p.elems[tok]
	if !ok {
		return
	}
	p.order.Remove(e)
	delete(p.elems, tok)
}

func (p *lruPolicy) EvictNext() (Token, error) {
	front := p.order.Front()
	if front == nil {
		return 0, ErrNothingToEvict
	}
	tok := front.Value.(Token)
	p.order.Remove(front)
	delete(p.elems, tok)
	return tok, nil
}
