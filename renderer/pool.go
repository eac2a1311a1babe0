package renderer

import (
	"log/slog"
	"math"
	"time"

	"github.com/go-rod/rod"
)

// trackedPage carries health metadata for one pooled browser tab.
type trackedPage struct {
	page     *rod.Page
	errScore float64
	useCount int
	created  time.Time
}

// recordSuccess decreases the error score (min 0).
func (t *trackedPage) recordSuccess() {
	t.useCount++
	t.errScore = math.Max(0, t.errScore-0.5)
}

// recordFailure increases the error score.
func (t *trackedPage) recordFailure() {
	t.useCount++
	t.errScore += 1.0
}

// shouldRetire reports whether the tab has degraded enough to be
// replaced: repeated failures, too many navigations, or old age.
func (t *trackedPage) shouldRetire(maxUses int, maxAge time.Duration) bool {
	if t.errScore >= 3.0 {
		return true
	}
	if maxUses > 0 && t.useCount >= maxUses {
		return true
	}
	if maxAge > 0 && time.Since(t.created) >= maxAge {
		return true
	}
	return false
}

// pagePool is a fixed-capacity pool of health-tracked tabs. Slots start
// empty and are filled lazily; retiring a tab frees its slot so the next
// acquire creates a fresh one. Acquiring blocks when every slot is
// checked out, which is the concurrency bound across runs.
type pagePool struct {
	idle    chan *trackedPage
	factory func() (*rod.Page, error)
	maxUses int
	maxAge  time.Duration
	log     *slog.Logger
}

func newPagePool(size, maxUses int, maxAge time.Duration, factory func() (*rod.Page, error), log *slog.Logger) *pagePool {
	p := &pagePool{
		idle:    make(chan *trackedPage, size),
		factory: factory,
		maxUses: maxUses,
		maxAge:  maxAge,
		log:     log,
	}
	for i := 0; i < size; i++ {
		p.idle <- nil
	}
	return p
}

// get acquires a tab, creating one if the slot is empty.
func (p *pagePool) get() (*trackedPage, error) {
	t := <-p.idle
	if t != nil {
		return t, nil
	}
	page, err := p.factory()
	if err != nil {
		// Hand the slot back so a later acquire can retry.
		p.idle <- nil
		return nil, err
	}
	return &trackedPage{page: page, created: time.Now()}, nil
}

// put returns a tab to the pool, retiring it when unhealthy.
func (p *pagePool) put(t *trackedPage, success bool) {
	if success {
		t.recordSuccess()
	} else {
		t.recordFailure()
	}
	if t.shouldRetire(p.maxUses, p.maxAge) {
		p.log.Debug("retiring page",
			"uses", t.useCount, "err_score", t.errScore, "age", time.Since(t.created),
		)
		_ = t.page.Close()
		p.idle <- nil
		return
	}
	p.idle <- t
}

// cleanup closes every pooled tab. Call on shutdown only.
func (p *pagePool) cleanup() {
	for i := 0; i < cap(p.idle); i++ {
		if t := <-p.idle; t != nil {
			_ = t.page.Close()
		}
	}
}
