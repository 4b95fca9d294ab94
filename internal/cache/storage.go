package cache

// Storage is the associative store from key to entry, addressable both
// by key and by a stable Token. Implementations must never re-key a live
// entry: once a Token is handed out for an entry it identifies that entry
// until removal, regardless of what else is inserted or removed.
type Storage interface {
	// Size reports the total byte length of all live entries.
	Size() int

	// Contains reports whether key currently addresses a live entry.
	Contains(key Key) bool

	// Get returns the entry for key and the token it lives at, if present.
	Get(key Key) (Token, Entry, bool)

	// GetToken returns the entry currently living at tok, if any.
	GetToken(tok Token) (Entry, bool)

	// Set installs e. If e.Key was already present, the existing entry is
	// overwritten in place (same token) and the old entry is returned;
	// otherwise a fresh token is allocated and nil is returned.
	Set(e Entry) (Token, *Entry)

	// Remove deletes the entry addressed by key, returning its token and
	// value if one was present.
	Remove(key Key) (Token, Entry, bool)

	// RemoveToken deletes the entry living at tok, returning it if present.
	RemoveToken(tok Token) (Entry, bool)
}

// hashStorage is the sparse, stable-token realization of Storage: a hash
// map from key to token plus a hash map from token to entry. Tokens are
// monotonically allocated and never reused, so removals never shift the
// token observed by any other live entry or by the replacement policy —
// the sparse-map choice spec.md §9 recommends over a dense shifting
// vector, because it needs no per-removal resynchronization step between
// the storage structure and the policy.
type hashStorage struct {
	tokens map[string]Token
	data   map[Token]Entry
	size   int
	next   Token
}

// NewHashStorage returns a Storage backed by the sparse stable-token
// layout described above.
func NewHashStorage() Storage {
	return &hashStorage{
		tokens: make(map[string]Token),
		data:   make(map[Token]Entry),
	}
}

func (s *hashStorage) Size() int { return s.size }

func (s *hashStorage) Contains(key Key) bool {
	_, ok := s.tokens[string(key)]
	return ok
}

func (s *hashStorage) Get(key Key) (Token, Entry, bool) {
	tok, ok := s.tokens[string(key)]
	if !ok {
		return 0, Entry{}, false
	}
	return tok, s.data[tok], true
}

func (s *hashStorage) GetToken(tok Token) (Entry, bool) {
	e, ok := s.data[tok]
	return e, ok
}

func (s *hashStorage) Set(e Entry) (Token, *Entry) {
	k := string(e.Key)
	if tok, ok := s.tokens[k]; ok {
		old := s.data[tok]
		s.size += e.Len() - old.Len()
		s.data[tok] = e
		return tok, &old
	}

	s.next++
	tok := s.next
	s.tokens[k] = tok
	s.data[tok] = e
	s.size += e.Len()
	return tok, nil
}

func (s *hashStorage) Remove(key Key) (Token, Entry, bool) {
	k := string(key)
	tok, ok := s.tokens[k]
	if !ok {
		return 0, Entry{}, false
	}
	e := s.data[tok]
	delete(s.tokens, k)
	delete(s.data, tok)
	s.size -= e.Len()
	return tok, e, true
}

func (s *hashStorage) RemoveToken(tok Token) (Entry, bool) {
	e, ok := s.data[tok]
	if !ok {
		return Entry{}, false
	}
	delete(s.data, tok)
	delete(s.tokens, string(e.Key))
	s.size -= e.Len()
	return e, true
}
