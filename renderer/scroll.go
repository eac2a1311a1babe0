package renderer

import (
	"context"
	"time"

	"github.com/go-rod/rod"
)

// scrollHeightJS reads the live document height. It is re-evaluated on
// every loop iteration, never cached: lazy content extends the page
// while scrolling and the loop must chase the growing height.
const scrollHeightJS = `() => Math.max(
	document.body ? document.body.scrollHeight : 0,
	document.documentElement.scrollHeight
)`

// scrollDone decides whether the scroll loop should stop. The page is
// fully scrolled once accumulated distance reaches the current height;
// the duration and distance caps end runs on pages that keep growing
// (infinite feeds), as a normal termination rather than an error.
func scrollDone(scrolled, docHeight, maxDistance int, elapsed, maxDuration time.Duration) bool {
	if scrolled >= docHeight {
		return true
	}
	if maxDistance > 0 && scrolled >= maxDistance {
		return true
	}
	if maxDuration > 0 && elapsed >= maxDuration {
		return true
	}
	return false
}

// scrollToBottom advances the page a fixed pixel step per tick until
// scrollDone fires, then returns the final document height. Mouse-wheel
// scrolling (not window.scrollTo) is used so scroll-linked lazy loaders
// see real input events.
func (r *Renderer) scrollToBottom(ctx context.Context, p *rod.Page) (int, error) {
	started := time.Now()
	scrolled := 0

	docHeight, err := r.readScrollHeight(p)
	if err != nil {
		return 0, categorizeError(err, "failed to read scroll height")
	}

	for !scrollDone(scrolled, docHeight, r.scrollCfg.MaxDistance, time.Since(started), r.scrollCfg.MaxDuration) {
		if err := p.Mouse.Scroll(0, float64(r.scrollCfg.Step), 1); err != nil {
			return 0, categorizeError(err, "scroll step failed")
		}
		scrolled += r.scrollCfg.Step

		if err := sleepCtx(ctx, r.scrollCfg.Interval); err != nil {
			return 0, categorizeError(err, "scroll loop interrupted")
		}

		if docHeight, err = r.readScrollHeight(p); err != nil {
			return 0, categorizeError(err, "failed to re-read scroll height")
		}
	}

	if scrolled > 0 && scrolled < docHeight {
		r.log.Debug("scroll loop capped before reaching bottom",
			"scrolled", scrolled, "doc_height", docHeight, "elapsed", time.Since(started),
		)
	}

	return docHeight, nil
}

func (r *Renderer) readScrollHeight(p *rod.Page) (int, error) {
	res, err := p.Eval(scrollHeightJS)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}
