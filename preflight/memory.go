package preflight

import (
	"sync"
	"time"
)

// failureEntry records why a host hard-failed, with an expiry.
type failureEntry struct {
	reason    string
	expiresAt time.Time
}

// failureMemory remembers recently unreachable hosts. Entries expire
// after the configured TTL and are pruned periodically.
type failureMemory struct {
	store sync.Map // host (string) -> *failureEntry
	ttl   time.Duration
	done  chan struct{}
}

func newFailureMemory(ttl time.Duration) *failureMemory {
	m := &failureMemory{
		ttl:  ttl,
		done: make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// get returns the failure reason for a host, or false if the host has
// no live entry.
func (m *failureMemory) get(host string) (string, bool) {
	val, ok := m.store.Load(host)
	if !ok {
		return "", false
	}
	entry := val.(*failureEntry)
	if time.Now().After(entry.expiresAt) {
		m.store.Delete(host)
		return "", false
	}
	return entry.reason, true
}

// set records a hard failure for a host.
func (m *failureMemory) set(host, reason string) {
	m.store.Store(host, &failureEntry{
		reason:    reason,
		expiresAt: time.Now().Add(m.ttl),
	})
}

// stop terminates the background cleanup goroutine.
func (m *failureMemory) stop() {
	close(m.done)
}

// cleanupLoop prunes expired entries every minute.
func (m *failureMemory) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			now := time.Now()
			m.store.Range(func(key, value any) bool {
				entry := value.(*failureEntry)
				if now.After(entry.expiresAt) {
					m.store.Delete(key)
				}
				return true
			})
		}
	}
}
