package planner

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Visited tracks URLs already admitted to the crawl. Keys must be
// normalized first; this set stores hashes only and knows nothing about
// URL equivalence. A failed URL stays visited: one attempt per URL per run.
type Visited struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewVisited creates a Visited set with the given estimated capacity.
func NewVisited(estimatedCapacity int) *Visited {
	return &Visited{
		seen: make(map[string]struct{}, estimatedCapacity),
	}
}

// Add marks the URL as visited. Returns true if it was not seen before;
// the check and the insert are one atomic step, so exactly one caller
// wins for any URL.
func (v *Visited) Add(normalizedURL string) bool {
	hash := hashURL(normalizedURL)

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[hash]; ok {
		return false
	}
	v.seen[hash] = struct{}{}
	return true
}

// Seen reports whether the URL has been marked. Pre-filtering only: the
// authoritative check is Add.
func (v *Visited) Seen(normalizedURL string) bool {
	hash := hashURL(normalizedURL)

	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.seen[hash]
	return ok
}

// Count returns the number of unique URLs marked.
func (v *Visited) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.seen)
}

// hashURL creates a compact hash of a URL string.
func hashURL(normalizedURL string) string {
	h := sha256.Sum256([]byte(normalizedURL))
	return hex.EncodeToString(h[:16]) // 128-bit hash
}
