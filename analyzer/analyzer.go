// Package analyzer orchestrates one capture run end to end: cache and
// preflight gates, rendering, section detection, slicing, metadata
// extraction, and the optional OCR/report/history/webhook steps.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/faiz-00/screenshot/cache"
	"github.com/faiz-00/screenshot/config"
	"github.com/faiz-00/screenshot/detector"
	"github.com/faiz-00/screenshot/meta"
	"github.com/faiz-00/screenshot/models"
	"github.com/faiz-00/screenshot/ocr"
	"github.com/faiz-00/screenshot/output"
	"github.com/faiz-00/screenshot/preflight"
	"github.com/faiz-00/screenshot/renderer"
	"github.com/faiz-00/screenshot/report"
	"github.com/faiz-00/screenshot/simhash"
	"github.com/faiz-00/screenshot/slicer"
	"github.com/faiz-00/screenshot/store"
	"github.com/faiz-00/screenshot/webhook"
)

// rasterName is the transient full-page capture inside the run
// directory; the slicer deletes it after cropping.
const rasterName = "fullpage.png"

// changedThreshold is the max Hamming distance between two content
// fingerprints still considered "unchanged".
const changedThreshold = 3

// Engine renders a page and produces the run artifacts. *renderer.Renderer
// is the production implementation; tests substitute a fake.
type Engine interface {
	Render(ctx context.Context, req renderer.Request, rasterPath string) (*renderer.Artifacts, error)
}

// Deps bundles everything an Analyzer needs. Engine, Workspace and
// Config are required; the rest are optional and nil disables the
// corresponding step.
type Deps struct {
	Engine    Engine
	Workspace *output.Workspace
	Slicer    *slicer.Slicer
	Extractor *meta.Extractor
	Store     *store.Store
	Cache     *cache.Cache
	Preflight *preflight.Checker
	Webhook   *webhook.Notifier
	Config    *config.Config
	Log       *slog.Logger
}

// Analyzer runs the capture pipeline. Safe for concurrent use; the
// engine's page pool bounds concurrency.
type Analyzer struct {
	deps Deps
	log  *slog.Logger
}

// New creates an Analyzer from its dependencies.
func New(deps Deps) *Analyzer {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	if deps.Slicer == nil {
		deps.Slicer = slicer.New(log)
	}
	if deps.Extractor == nil {
		deps.Extractor = meta.New(log)
	}
	return &Analyzer{deps: deps, log: log.With("component", "analyzer")}
}

// Analyze performs one full run. A run that found zero sections still
// succeeds; failures after the raster is captured degrade to warnings,
// except slicing, which is fatal because it is the product.
func (a *Analyzer) Analyze(ctx context.Context, req *models.AnalyzeRequest) (*models.AnalyzeResponse, error) {
	totalStart := time.Now()
	req.Defaults()

	if req.OCR && !ocr.Enabled() {
		return nil, models.NewCaptureError(models.ErrCodeOCRDisabled,
			"ocr requested but this build has no ocr support", nil)
	}

	// ── 1. Cache lookup ─────────────────────────────────────────────
	var cacheKey string
	if a.deps.Cache != nil {
		cacheKey = cache.Key(req)
		if !req.Fresh {
			if cached, hit := a.deps.Cache.Get(cacheKey); hit {
				cached.CacheStatus = "hit"
				cached.Timing.TotalMs = time.Since(totalStart).Milliseconds()
				return cached, nil
			}
		}
	}

	// ── 2. Preflight ────────────────────────────────────────────────
	if a.deps.Preflight != nil {
		if err := a.deps.Preflight.Check(ctx, req.URL); err != nil {
			return nil, err
		}
	}

	// ── 3. Run directory ────────────────────────────────────────────
	namespace, runDir, err := a.deps.Workspace.NewRun(req.URL, time.Now())
	if err != nil {
		return nil, models.NewCaptureError(models.ErrCodeStore, "failed to create run directory", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, a.runTimeout(req))
	defer cancel()

	// ── 4. Render: navigate, scroll, measure, capture ───────────────
	blockTrackers := a.deps.Config.Capture.BlockTrackers
	if req.BlockTrackers != nil {
		blockTrackers = *req.BlockTrackers
	}
	rasterPath := filepath.Join(runDir, rasterName)
	artifacts, err := a.deps.Engine.Render(runCtx, renderer.Request{
		URL:           req.URL,
		Stealth:       req.Stealth,
		BlockTrackers: blockTrackers,
		ProxyURL:      req.ProxyURL,
	}, rasterPath)
	if err != nil {
		a.cleanupRun(runDir)
		a.notifyFailed(req.URL, namespace, totalStart, err)
		return nil, err
	}

	// ── 5. Detect sections ──────────────────────────────────────────
	sections := detector.Detect(artifacts.Snapshot)

	// ── 6. Slice — raster is consumed and deleted either way ────────
	sliceStart := time.Now()
	sliced, err := a.deps.Slicer.Slice(runCtx, rasterPath, sections, runDir, slicer.Options{
		Thumbnails: req.Thumbnails,
		ThumbWidth: a.deps.Config.Capture.ThumbWidth,
	})
	sliceMs := time.Since(sliceStart).Milliseconds()
	if err != nil {
		a.cleanupRun(runDir)
		a.notifyFailed(req.URL, namespace, totalStart, err)
		return nil, err
	}

	resp := &models.AnalyzeResponse{
		Success:      true,
		URL:          req.URL,
		FinalURL:     artifacts.FinalURL,
		Namespace:    namespace,
		Sections:     sliced.Crops,
		SectionCount: len(sliced.Crops),
		SkippedCount: sliced.Skipped,
		PageHeight:   artifacts.PageHeight,
		Timing: models.TimingInfo{
			NavigationMs: artifacts.NavigationMs,
			ScrollMs:     artifacts.ScrollMs,
			DetectMs:     artifacts.DetectMs,
			CaptureMs:    artifacts.CaptureMs,
			SliceMs:      sliceMs,
		},
	}

	// ── 7. Metadata + content snapshot ──────────────────────────────
	extracted := a.deps.Extractor.Extract(artifacts.HTML, artifacts.FinalURL)
	resp.Metadata = extracted.Metadata
	if resp.Metadata.Title == "" {
		resp.Metadata.Title = artifacts.Title
	}
	if extracted.Markdown != "" {
		if werr := os.WriteFile(filepath.Join(runDir, output.MarkdownFile), []byte(extracted.Markdown), 0o644); werr != nil {
			resp.Warnings = append(resp.Warnings, "markdown snapshot not written: "+werr.Error())
		} else {
			resp.MarkdownFile = output.MarkdownFile
		}
	}

	// ── 8. Fingerprint + changed flag ───────────────────────────────
	if fp := simhash.Fingerprint(extracted.Markdown); fp != 0 {
		resp.ContentHash = simhash.Hex(fp)
	}
	host := hostOf(artifacts.FinalURL, req.URL)
	if a.deps.Store != nil && resp.ContentHash != "" {
		if prev, lerr := a.deps.Store.LatestRunForHost(ctx, host); lerr == nil && prev.ContentHash != "" {
			changed := !simhash.Similar(simhash.ParseHex(prev.ContentHash), simhash.ParseHex(resp.ContentHash), changedThreshold)
			resp.Changed = &changed
		}
	}

	// ── 9. Optional OCR ─────────────────────────────────────────────
	if req.OCR {
		a.recognizeCrops(runDir, resp)
	}

	// ── 10. Optional contact-sheet report ───────────────────────────
	if req.PDFReport && len(resp.Sections) > 0 {
		if file, rerr := report.Build(runDir, resp.Sections); rerr != nil {
			resp.Warnings = append(resp.Warnings, "report not assembled: "+rerr.Error())
		} else {
			resp.ReportFile = file
		}
	}

	resp.Timing.TotalMs = time.Since(totalStart).Milliseconds()

	// ── 11. History ─────────────────────────────────────────────────
	if a.deps.Store != nil {
		run := &store.Run{
			Namespace:    namespace,
			URL:          req.URL,
			FinalURL:     artifacts.FinalURL,
			Host:         host,
			Title:        resp.Metadata.Title,
			SectionCount: resp.SectionCount,
			SkippedCount: resp.SkippedCount,
			ContentHash:  resp.ContentHash,
			DurationMs:   resp.Timing.TotalMs,
			CreatedAt:    time.Now(),
			Crops:        resp.Sections,
		}
		if serr := a.deps.Store.InsertRun(ctx, run); serr != nil {
			resp.Warnings = append(resp.Warnings, "run not recorded in history: "+serr.Error())
		}
	}

	// ── 12. Notify + cache ──────────────────────────────────────────
	a.deps.Webhook.DeliverAsync(&webhook.Event{
		Type:         "run.completed",
		Namespace:    namespace,
		URL:          req.URL,
		Timestamp:    time.Now().Unix(),
		SectionCount: resp.SectionCount,
		SkippedCount: resp.SkippedCount,
		DurationMs:   resp.Timing.TotalMs,
	})
	if a.deps.Cache != nil {
		a.deps.Cache.Set(cacheKey, resp)
		resp.CacheStatus = "miss"
	}

	a.log.Info("run completed",
		"namespace", namespace,
		"url", req.URL,
		"sections", resp.SectionCount,
		"skipped", resp.SkippedCount,
		"page_height", resp.PageHeight,
		"total_ms", resp.Timing.TotalMs,
	)
	return resp, nil
}

// runTimeout clamps the requested timeout to the configured maximum.
func (a *Analyzer) runTimeout(req *models.AnalyzeRequest) time.Duration {
	d := time.Duration(req.Timeout) * time.Second
	if d <= 0 {
		d = a.deps.Config.Capture.DefaultTimeout
	}
	if max := a.deps.Config.Capture.MaxTimeout; max > 0 && d > max {
		d = max
	}
	return d
}

// recognizeCrops OCRs every crop in place, degrading per-crop failures
// to warnings.
func (a *Analyzer) recognizeCrops(runDir string, resp *models.AnalyzeResponse) {
	reader, err := ocr.NewReader(a.deps.Config.OCR.Languages)
	if err != nil {
		resp.Warnings = append(resp.Warnings, "ocr unavailable: "+err.Error())
		return
	}
	defer reader.Close()

	for i := range resp.Sections {
		png, rerr := os.ReadFile(filepath.Join(runDir, resp.Sections[i].File))
		if rerr != nil {
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("ocr skipped %s: %v", resp.Sections[i].File, rerr))
			continue
		}
		text, rerr := reader.Recognize(png)
		if rerr != nil {
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("ocr failed on %s: %v", resp.Sections[i].File, rerr))
			continue
		}
		resp.Sections[i].Text = text
	}
}

// cleanupRun removes a run directory whose pipeline failed before
// producing anything worth keeping.
func (a *Analyzer) cleanupRun(runDir string) {
	if err := os.RemoveAll(runDir); err != nil {
		a.log.Warn("failed to remove aborted run directory", "dir", runDir, "error", err)
	}
}

// notifyFailed emits a run.failed webhook event.
func (a *Analyzer) notifyFailed(url, namespace string, start time.Time, err error) {
	code := models.ErrCodeInternal
	if ce, ok := err.(*models.CaptureError); ok {
		code = ce.Code
	}
	a.deps.Webhook.DeliverAsync(&webhook.Event{
		Type:       "run.failed",
		Namespace:  namespace,
		URL:        url,
		Timestamp:  time.Now().Unix(),
		DurationMs: time.Since(start).Milliseconds(),
		ErrorCode:  code,
	})
}

// hostOf extracts the hostname of the final URL, falling back to the
// requested one.
func hostOf(finalURL, reqURL string) string {
	for _, raw := range []string{finalURL, reqURL} {
		if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
	}
	return ""
}
