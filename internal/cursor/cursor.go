// Package cursor keeps the per-account poll cursor: the greatest post id
// observed so far. Cursors only ever move forward.
package cursor

import (
	"context"
	"sync"
)

// Store reads and advances per-account cursors.
//
// Advance is a compare-and-set: candidate replaces the current cursor only
// when Newer(candidate, current) holds. It reports whether the cursor moved.
type Store interface {
	Get(ctx context.Context, account string) (string, bool, error)
	Advance(ctx context.Context, account, candidate string) (bool, error)
}

// Newer reports whether post id a sorts after b. Two decimal strings are
// compared numerically (so "101" > "99"); anything else compares as plain
// strings. The empty string sorts first.
func Newer(a, b string) bool {
	if a == "" {
		return false
	}
	if b == "" {
		return true
	}
	if isDecimal(a) && isDecimal(b) {
		a, b = trimZeros(a), trimZeros(b)
		if len(a) != len(b) {
			return len(a) > len(b)
		}
	}
	return a > b
}

// Max returns the newest of ids, or "" when ids is empty.
func Max(ids ...string) string {
	var m string
	for _, id := range ids {
		if Newer(id, m) {
			m = id
		}
	}
	return m
}

func isDecimal(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func trimZeros(s string) string {
	for len(s) > 1 && s[0] == '0' {
		s = s[1:]
	}
	return s
}

// MemoryStore is a process-local Store. Cursors are lost on restart, after
// which the record store's id-level idempotency absorbs the re-fetch.
type MemoryStore struct {
	mu      sync.Mutex
	cursors map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cursors: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, account string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cursors[account]
	return v, ok, nil
}

func (s *MemoryStore) Advance(_ context.Context, account, candidate string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !Newer(candidate, s.cursors[account]) {
		return false, nil
	}
	s.cursors[account] = candidate
	return true, nil
}
