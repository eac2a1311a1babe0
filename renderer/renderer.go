// Package renderer owns the headless browser and turns a URL into the
// raw material of an analysis run: a geometry snapshot, page metadata
// and one full-page raster.
package renderer

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/faiz-00/screenshot/config"
	"github.com/faiz-00/screenshot/detector"
	"github.com/faiz-00/screenshot/models"
)

// Request carries the per-run render options.
type Request struct {
	URL string

	// Stealth masks automation fingerprints before navigation.
	Stealth bool

	// BlockTrackers drops requests to analytics/telemetry hosts at the
	// network layer. Visual resources are never blocked.
	BlockTrackers bool

	// ProxyURL routes this run through its own proxy via a dedicated
	// incognito browser context. Empty uses the shared context.
	ProxyURL string
}

// Artifacts is everything the renderer produced for one run.
type Artifacts struct {
	FinalURL string
	Title    string
	HTML     string

	// Snapshot is the in-page geometry measurement taken after the
	// scroll loop settled.
	Snapshot *detector.Snapshot

	// PageHeight is the full document height in CSS pixels.
	PageHeight int

	// RasterPath is where the full-page PNG was written.
	RasterPath string

	NavigationMs int64
	ScrollMs     int64
	DetectMs     int64
	CaptureMs    int64
}

// Renderer manages the global browser lifecycle and the page pool.
// It is safe for concurrent use; the pool size bounds concurrent runs.
type Renderer struct {
	browser     *rod.Browser
	launcher    *launcher.Launcher
	pool        *pagePool
	browserCfg  config.BrowserConfig
	captureCfg  config.CaptureConfig
	scrollCfg   config.ScrollConfig
	activePages atomic.Int32
	log         *slog.Logger
}

// New launches a headless browser and initialises the reusable page pool.
func New(browserCfg config.BrowserConfig, captureCfg config.CaptureConfig, scrollCfg config.ScrollConfig, log *slog.Logger) (*Renderer, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "renderer")

	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.DefaultProxy != "" {
		l = l.Proxy(browserCfg.DefaultProxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	// Constant output regardless of the host display.
	l.Set(flags.Flag("force-device-scale-factor"), "1")
	l.Set(flags.Flag("hide-scrollbars"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewCaptureError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	log.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewCaptureError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	r := &Renderer{
		browser:    browser,
		launcher:   l,
		browserCfg: browserCfg,
		captureCfg: captureCfg,
		scrollCfg:  scrollCfg,
		log:        log,
	}
	r.pool = newPagePool(
		browserCfg.MaxPages,
		browserCfg.MaxPageUses,
		browserCfg.MaxPageAge,
		func() (*rod.Page, error) {
			return browser.Page(proto.TargetCreateTarget{})
		},
		log,
	)
	log.Info("page pool created", "maxPages", browserCfg.MaxPages)

	return r, nil
}

// Stats returns a snapshot of the pool's current state.
func (r *Renderer) Stats() models.PoolStats {
	return models.PoolStats{
		MaxPages:    r.browserCfg.MaxPages,
		ActivePages: int(r.activePages.Load()),
		BrowserPID:  r.launcher.PID(),
	}
}

// Close drains the page pool and kills the browser process.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (r *Renderer) Close() {
	r.log.Info("renderer shutting down: draining page pool")
	r.pool.cleanup()
	r.log.Info("renderer shutting down: closing browser")
	r.browser.MustClose()
	r.log.Info("renderer shutdown complete")
}

// Render runs one sequential capture against the target URL. Every
// stage depends on side effects of the prior one (layout must settle
// before measurement, full scroll height must be known before capture),
// so the order is fixed:
//
//  1. Acquire page           – borrow a tab from the pool (or create one)
//  2. DEFER: cleanup         – about:blank + return to pool (leak prevention)
//  3. Stealth injection      – mask navigator.webdriver etc. (before navigation!)
//  4. Hijack mount           – drop tracker requests (before navigation!)
//  5. Viewport override      – fixed capture width, unit device scale
//  6. Navigate + wait        – load event, then DOM-stable window
//  7. Scroll to bottom       – bounded loop triggering lazy content
//  8. Settle delay           – absorb async lazy-load completions
//  9. Measure geometry       – in-page snapshot for the detector
//  10. Read page state       – final URL, title, serialized HTML
//  11. Capture raster        – one full-page PNG, written to rasterPath
//
// Steps 3-5 must precede step 6: stealth JS, request interception and
// viewport metrics only apply to navigations that happen after they are
// installed. Step 2's about:blank uses the original page reference, so
// cleanup succeeds even when the run context has expired.
func (r *Renderer) Render(ctx context.Context, req Request, rasterPath string) (*Artifacts, error) {
	if req.ProxyURL != "" {
		return r.renderProxied(ctx, req, rasterPath)
	}

	// ── 1. Acquire page from pool ────────────────────────────────────
	r.activePages.Add(1)
	defer r.activePages.Add(-1)

	tracked, acquireErr := r.pool.get()
	if acquireErr != nil {
		return nil, models.NewCaptureError(
			models.ErrCodeBrowserCrash,
			"failed to acquire page from pool",
			acquireErr,
		)
	}
	page := tracked.page

	// ── 2. CRITICAL DEFER: prevent DOM memory leak + guarantee pool return
	ok := false
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			r.log.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		r.pool.put(tracked, ok)
	}()

	art, err := r.renderOnPage(ctx, page, req, rasterPath)
	if err != nil {
		return nil, err
	}
	ok = true
	return art, nil
}

// renderProxied runs the capture in a throwaway incognito browser
// context carrying its own proxy, bypassing the shared pool.
func (r *Renderer) renderProxied(ctx context.Context, req Request, rasterPath string) (*Artifacts, error) {
	bc, err := proto.TargetCreateBrowserContext{ProxyServer: req.ProxyURL}.Call(r.browser)
	if err != nil {
		return nil, models.NewCaptureError(
			models.ErrCodeBrowserCrash,
			"failed to create proxied browser context",
			err,
		)
	}
	defer func() {
		_ = proto.TargetDisposeBrowserContext{BrowserContextID: bc.BrowserContextID}.Call(r.browser)
	}()

	page, err := r.browser.Page(proto.TargetCreateTarget{BrowserContextID: bc.BrowserContextID})
	if err != nil {
		return nil, models.NewCaptureError(
			models.ErrCodeBrowserCrash,
			"failed to create page in proxied context",
			err,
		)
	}
	defer func() { _ = page.Close() }()

	r.activePages.Add(1)
	defer r.activePages.Add(-1)

	return r.renderOnPage(ctx, page, req, rasterPath)
}

// renderOnPage is the shared per-page render path (steps 3-11).
func (r *Renderer) renderOnPage(ctx context.Context, page *rod.Page, req Request, rasterPath string) (*Artifacts, error) {
	// ── 3. Stealth injection ─────────────────────────────────────────
	if req.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			r.log.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	// ── 3b. Referer header so direct hits look like search traffic ──
	if u, parseErr := url.Parse(req.URL); parseErr == nil {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: refererHeader(u.Hostname()),
		}.Call(page)
	}

	// ── 4. Mount hijack router (tracker hosts only) ──────────────────
	if req.BlockTrackers {
		if router := setupHijack(page); router != nil {
			defer func() { _ = router.Stop() }()
		}
	}

	// ── 5. Viewport override ─────────────────────────────────────────
	// The section geometry and every crop are measured against this
	// width; DeviceScaleFactor 1 makes raster pixels equal CSS pixels.
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             r.captureCfg.ViewportWidth,
		Height:            r.captureCfg.ViewportHeight,
		DeviceScaleFactor: 1,
		Mobile:            false,
	}); err != nil {
		return nil, models.NewCaptureError(
			models.ErrCodeBrowserCrash,
			"failed to apply viewport override",
			err,
		)
	}

	// ── 6. Navigate + wait ───────────────────────────────────────────
	navStart := time.Now()
	navCtx, navCancel := context.WithTimeout(ctx, r.captureCfg.NavigationTimeout)
	defer navCancel()

	p := page.Context(navCtx)
	if navErr := p.Navigate(req.URL); navErr != nil {
		return nil, categorizeError(navErr, "navigation to target URL failed")
	}
	if loadErr := p.WaitLoad(); loadErr != nil {
		return nil, categorizeError(loadErr, "page load wait failed")
	}
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		r.log.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"error", stableErr,
		)
	}
	navigationMs := time.Since(navStart).Milliseconds()

	// Re-bind to the run context; navigation's tighter deadline is done.
	p = page.Context(ctx)

	// ── 7+8. Scroll to bottom, then settle ───────────────────────────
	scrollStart := time.Now()
	pageHeight, err := r.scrollToBottom(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := sleepCtx(ctx, r.captureCfg.SettleDelay); err != nil {
		return nil, categorizeError(err, "settle delay interrupted")
	}
	scrollMs := time.Since(scrollStart).Milliseconds()

	// ── 9. Measure geometry ──────────────────────────────────────────
	// Runs only now: visibility, layout and lazily-loaded nodes keep
	// changing until scrolling has settled.
	detectStart := time.Now()
	res, err := p.Eval(detector.Script())
	if err != nil {
		return nil, categorizeError(err, "geometry measurement failed")
	}
	snap, err := detector.DecodeSnapshot(res.Value.Val())
	if err != nil {
		return nil, models.NewCaptureError(
			models.ErrCodeCapture,
			"geometry snapshot undecodable",
			err,
		)
	}
	detectMs := time.Since(detectStart).Milliseconds()

	// ── 10. Read page state (best-effort except HTML) ────────────────
	html, htmlErr := p.HTML()
	if htmlErr != nil {
		r.log.Warn("failed to serialize page HTML", "error", htmlErr)
	}
	title := evalStringOrEmpty(p, `() => document.title`)
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}

	// ── 11. Capture full-page raster ─────────────────────────────────
	captureStart := time.Now()
	buf, err := p.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, categorizeError(err, "full-page capture failed")
	}
	if err := os.WriteFile(rasterPath, buf, 0o644); err != nil {
		return nil, models.NewCaptureError(
			models.ErrCodeCapture,
			"failed to persist raster",
			err,
		)
	}
	captureMs := time.Since(captureStart).Milliseconds()

	return &Artifacts{
		FinalURL:     finalURL,
		Title:        title,
		HTML:         html,
		Snapshot:     snap,
		PageHeight:   pageHeight,
		RasterPath:   rasterPath,
		NavigationMs: navigationMs,
		ScrollMs:     scrollMs,
		DetectMs:     detectMs,
		CaptureMs:    captureMs,
	}, nil
}

// evalStringOrEmpty evaluates a JS expression and returns the string
// result, swallowing any errors (useful for optional metadata).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// sleepCtx waits for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// categorizeError wraps raw errors into typed CaptureErrors so the API
// layer can map them to appropriate HTTP status codes. The capture
// stage distinguishes a dead browser session from plain navigation
// failures.
func categorizeError(err error, msg string) *models.CaptureError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewCaptureError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewCaptureError(models.ErrCodeTimeout, "run canceled", err)
	case errors.Is(err, cdp.ErrConnClosed):
		return models.NewCaptureError(models.ErrCodeBrowserCrash, msg, err)
	default:
		return models.NewCaptureError(models.ErrCodeNavigation, msg, err)
	}
}
