package watchdog

import (
	"sync"
	"time"
)

const pruneThreshold = 1024

// Debouncer suppresses a key for window after each accepted use.
type Debouncer struct {
	window time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window, last: make(map[string]time.Time)}
}

// Allow reports whether key may fire at now and, if so, starts a new window.
func (d *Debouncer) Allow(key string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.last[key]; ok && now.Sub(t) < d.window {
		return false
	}
	if len(d.last) >= pruneThreshold {
		for k, t := range d.last {
			if now.Sub(t) >= d.window {
				delete(d.last, k)
			}
		}
	}
	d.last[key] = now
	return true
}
