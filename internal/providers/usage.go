package providers

import "sync"

// UsageTracker accumulates token counts per model alias. Safe for
// concurrent use; background summarization workers report into the same
// tracker as the main loop.
type UsageTracker struct {
	mu    sync.Mutex
	usage map[string]int
}

func NewUsageTracker() *UsageTracker {
	return &UsageTracker{usage: make(map[string]int)}
}

func (t *UsageTracker) Add(alias string, tokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage[alias] += tokens
}

func (t *UsageTracker) Total(alias string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage[alias]
}

// Snapshot returns a copy of the per-alias totals for end-of-run reporting.
func (t *UsageTracker) Snapshot() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.usage))
	for k, v := range t.usage {
		out[k] = v
	}
	return out
}
