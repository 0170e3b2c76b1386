package autoria

import "sync"

// SeenFilter tracks which listing URLs have already been handled during one
// crawl run. It only cuts redundant work inside a run; cross-run uniqueness
// is enforced by the cars table's URL constraint.
type SeenFilter struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewSeenFilter() *SeenFilter {
	return &SeenFilter{seen: make(map[string]struct{})}
}

// Claim marks url as handled and reports whether this caller was the first.
// Check and mark happen under one lock, so with concurrent workers exactly
// one of them gets true per URL.
func (f *SeenFilter) Claim(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[url]; ok {
		return false
	}
	f.seen[url] = struct{}{}
	return true
}

// Len returns how many distinct URLs have been claimed.
func (f *SeenFilter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}
