package analyzer

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/faiz-00/screenshot/cache"
	"github.com/faiz-00/screenshot/config"
	"github.com/faiz-00/screenshot/detector"
	"github.com/faiz-00/screenshot/models"
	"github.com/faiz-00/screenshot/output"
	"github.com/faiz-00/screenshot/renderer"
	"github.com/faiz-00/screenshot/store"
)

const sampleHTML = `<!DOCTYPE html>
<html lang="en"><head>
<title>Acme Store</title>
<meta name="description" content="Everything for the discerning coyote.">
</head><body>
<main><h1>Acme Store</h1>
<p>Browse our full catalog of anvils, rockets and giant magnets, with
free next-day delivery to any desert location you can name.</p>
</main></body></html>`

// fakeEngine writes a real raster and returns a canned snapshot, so the
// pipeline downstream of rendering runs for real.
type fakeEngine struct {
	calls    atomic.Int32
	err      error
	snapshot *detector.Snapshot
	rasterH  int
}

func (f *fakeEngine) Render(ctx context.Context, req renderer.Request, rasterPath string) (*renderer.Artifacts, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	img := image.NewRGBA(image.Rect(0, 0, 1280, f.rasterH))
	for i := range img.Pix {
		img.Pix[i] = 0xee
	}
	img.Set(0, 0, color.Black)
	out, err := os.Create(rasterPath)
	if err != nil {
		return nil, err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return nil, err
	}
	out.Close()
	return &renderer.Artifacts{
		FinalURL:   req.URL,
		Title:      "Acme Store",
		HTML:       sampleHTML,
		Snapshot:   f.snapshot,
		PageHeight: f.rasterH,
		RasterPath: rasterPath,
	}, nil
}

func twoSectionSnapshot() *detector.Snapshot {
	return &detector.Snapshot{
		ViewportWidth: 1280,
		DocHeight:     1200,
		Body: &detector.Node{
			Tag:  "body",
			Rect: detector.Rect{Width: 1280, Height: 1200},
			Children: []*detector.Node{
				{Tag: "header", Rect: detector.Rect{Top: 0, Width: 1280, Height: 600}},
				{Tag: "section", Rect: detector.Rect{Top: 600, Width: 1280, Height: 600}},
			},
		},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Capture: config.CaptureConfig{
			DefaultTimeout: 30 * time.Second,
			MaxTimeout:     60 * time.Second,
			ThumbWidth:     320,
		},
	}
}

func newTestAnalyzer(t *testing.T, eng Engine, extra func(*Deps)) (*Analyzer, string) {
	t.Helper()
	root := t.TempDir()
	deps := Deps{
		Engine:    eng,
		Workspace: output.New(root),
		Config:    testConfig(),
	}
	if extra != nil {
		extra(&deps)
	}
	return New(deps), root
}

func TestAnalyzeSuccess(t *testing.T) {
	eng := &fakeEngine{snapshot: twoSectionSnapshot(), rasterH: 1200}
	a, root := newTestAnalyzer(t, eng, nil)

	resp, err := a.Analyze(context.Background(), &models.AnalyzeRequest{URL: "https://acme.example/shop"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if !resp.Success {
		t.Error("Success = false")
	}
	if resp.SectionCount != 2 || len(resp.Sections) != 2 {
		t.Fatalf("SectionCount = %d, want 2", resp.SectionCount)
	}
	if resp.Namespace == "" {
		t.Error("empty namespace")
	}
	if resp.PageHeight != 1200 {
		t.Errorf("PageHeight = %d, want 1200", resp.PageHeight)
	}
	if resp.Metadata.Title != "Acme Store" {
		t.Errorf("Metadata.Title = %q", resp.Metadata.Title)
	}

	runDir := filepath.Join(root, resp.Namespace)
	for _, sec := range resp.Sections {
		if _, err := os.Stat(filepath.Join(runDir, sec.File)); err != nil {
			t.Errorf("missing crop %s: %v", sec.File, err)
		}
	}
	if _, err := os.Stat(filepath.Join(runDir, rasterName)); !os.IsNotExist(err) {
		t.Error("raster was not deleted after slicing")
	}
}

func TestAnalyzeZeroSections(t *testing.T) {
	eng := &fakeEngine{snapshot: &detector.Snapshot{ViewportWidth: 1280, DocHeight: 800}, rasterH: 800}
	a, root := newTestAnalyzer(t, eng, nil)

	resp, err := a.Analyze(context.Background(), &models.AnalyzeRequest{URL: "https://blank.example/"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !resp.Success || resp.SectionCount != 0 {
		t.Errorf("Success=%v SectionCount=%d, want success with 0", resp.Success, resp.SectionCount)
	}
	// The raster is still captured and deleted on an empty page.
	if _, err := os.Stat(filepath.Join(root, resp.Namespace, rasterName)); !os.IsNotExist(err) {
		t.Error("raster survived a zero-section run")
	}
}

func TestAnalyzeCacheHit(t *testing.T) {
	eng := &fakeEngine{snapshot: twoSectionSnapshot(), rasterH: 1200}
	cc := cache.New(10, time.Minute)
	defer cc.Stop()
	a, _ := newTestAnalyzer(t, eng, func(d *Deps) { d.Cache = cc })

	req := &models.AnalyzeRequest{URL: "https://acme.example/shop"}
	first, err := a.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	if first.CacheStatus != "miss" {
		t.Errorf("first CacheStatus = %q, want miss", first.CacheStatus)
	}

	second, err := a.Analyze(context.Background(), &models.AnalyzeRequest{URL: "https://acme.example/shop"})
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if second.CacheStatus != "hit" {
		t.Errorf("second CacheStatus = %q, want hit", second.CacheStatus)
	}
	if got := eng.calls.Load(); got != 1 {
		t.Errorf("engine rendered %d times, want 1", got)
	}

	// Fresh bypasses the cache.
	if _, err := a.Analyze(context.Background(), &models.AnalyzeRequest{URL: "https://acme.example/shop", Fresh: true}); err != nil {
		t.Fatalf("fresh Analyze: %v", err)
	}
	if got := eng.calls.Load(); got != 2 {
		t.Errorf("engine rendered %d times after fresh, want 2", got)
	}
}

func TestAnalyzeRenderFailureCleansUp(t *testing.T) {
	renderErr := models.NewCaptureError(models.ErrCodeNavigation, "net::ERR_NAME_NOT_RESOLVED", nil)
	eng := &fakeEngine{err: renderErr}
	a, root := newTestAnalyzer(t, eng, nil)

	_, err := a.Analyze(context.Background(), &models.AnalyzeRequest{URL: "https://nope.invalid/"})
	if err == nil {
		t.Fatal("expected error")
	}
	var ce *models.CaptureError
	if !errors.As(err, &ce) || ce.Code != models.ErrCodeNavigation {
		t.Errorf("error = %v, want NAVIGATION_FAILED", err)
	}

	entries, rerr := os.ReadDir(root)
	if rerr != nil {
		t.Fatalf("read workspace root: %v", rerr)
	}
	if len(entries) != 0 {
		t.Errorf("aborted run left %d entries in workspace", len(entries))
	}
}

func TestAnalyzeOCRDisabled(t *testing.T) {
	eng := &fakeEngine{snapshot: twoSectionSnapshot(), rasterH: 1200}
	a, _ := newTestAnalyzer(t, eng, nil)

	_, err := a.Analyze(context.Background(), &models.AnalyzeRequest{URL: "https://acme.example/", OCR: true})
	var ce *models.CaptureError
	if !errors.As(err, &ce) || ce.Code != models.ErrCodeOCRDisabled {
		t.Fatalf("error = %v, want OCR_DISABLED", err)
	}
	if got := eng.calls.Load(); got != 0 {
		t.Errorf("engine rendered %d times, want 0 (rejected up front)", got)
	}
}

func TestAnalyzeRecordsHistory(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()

	eng := &fakeEngine{snapshot: twoSectionSnapshot(), rasterH: 1200}
	a, _ := newTestAnalyzer(t, eng, func(d *Deps) { d.Store = db })

	resp, err := a.Analyze(context.Background(), &models.AnalyzeRequest{URL: "https://acme.example/shop"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if resp.Changed != nil {
		t.Error("first run of a host should have no changed flag")
	}

	run, err := db.GetRun(context.Background(), resp.Namespace)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.SectionCount != 2 || run.Host != "acme.example" {
		t.Errorf("stored run = %+v", run)
	}

	// An identical second run is unchanged relative to the first.
	resp2, err := a.Analyze(context.Background(), &models.AnalyzeRequest{URL: "https://acme.example/shop"})
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if resp2.ContentHash != "" {
		if resp2.Changed == nil {
			t.Error("second run missing changed flag")
		} else if *resp2.Changed {
			t.Error("identical content reported as changed")
		}
	}
}
