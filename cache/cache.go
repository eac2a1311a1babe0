// Package cache holds recently produced analyze responses so identical
// back-to-back requests skip the browser entirely.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/faiz-00/screenshot/models"
)

// entry holds a cached response with its creation timestamp.
type entry struct {
	response  *models.AnalyzeResponse
	createdAt time.Time
}

// Cache is an in-memory TTL cache of analyze responses, keyed by URL
// plus an option digest so requests with different capture options
// never share a result. Failed runs are never cached. Safe for
// concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	done       chan struct{}
}

// New creates a Cache. A background janitor evicts expired entries.
func New(maxEntries int, ttl time.Duration) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		done:       make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Key digests the URL and every option that changes the produced
// artifacts. Fresh is deliberately excluded: it controls lookup, not
// identity.
func Key(req *models.AnalyzeRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%t|%t|%t|%t|%s",
		req.URL, req.Stealth, req.Thumbnails, req.OCR, req.PDFReport, req.ProxyURL)
	if req.BlockTrackers != nil {
		fmt.Fprintf(h, "|bt=%t", *req.BlockTrackers)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a live cached response. The returned value is a shallow
// copy so callers can stamp per-request fields (cache status, timing)
// without racing other hits on the shared entry.
func (c *Cache) Get(key string) (*models.AnalyzeResponse, bool) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || time.Since(e.createdAt) > c.ttl {
		return nil, false
	}
	cp := *e.response
	return &cp, true
}

// Set stores a successful response. If the cache is at capacity, a
// random entry is evicted to make room (map iteration is random in Go).
func (c *Cache) Set(key string, resp *models.AnalyzeResponse) {
	if resp == nil || !resp.Success {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}
	c.store[key] = &entry{response: resp, createdAt: time.Now()}
}

// Stop terminates the janitor goroutine.
func (c *Cache) Stop() {
	close(c.done)
}

// cleanupLoop evicts expired entries every minute.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-c.ttl)
			c.mu.Lock()
			for k, e := range c.store {
				if e.createdAt.Before(cutoff) {
					delete(c.store, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
