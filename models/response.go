package models

// AnalyzeResponse is the response for POST /api/v1/analyze.
type AnalyzeResponse struct {
	// Success indicates whether the run completed without errors. A run
	// that found zero sections is still a success.
	Success bool `json:"success"`

	// URL is the requested target.
	URL string `json:"url"`

	// FinalURL is the URL after following all redirects.
	FinalURL string `json:"final_url"`

	// Namespace is the per-run output directory name, derived from the
	// target host and a timestamp so repeated runs never collide.
	Namespace string `json:"namespace"`

	// Sections lists the produced crops in ascending top order.
	Sections []SectionImage `json:"sections"`

	// SectionCount is the number of crops actually produced.
	SectionCount int `json:"section_count"`

	// SkippedCount is the number of sections dropped because their
	// clamped rectangle was degenerate.
	SkippedCount int `json:"skipped_count"`

	// PageHeight is the full document height in pixels after scrolling.
	PageHeight int `json:"page_height"`

	// Metadata contains extracted page metadata.
	Metadata Metadata `json:"metadata"`

	// MarkdownFile names the stored markdown snapshot, relative to the
	// run directory, when one was produced.
	MarkdownFile string `json:"markdown_file,omitempty"`

	// ReportFile names the contact-sheet PDF when one was requested.
	ReportFile string `json:"report_file,omitempty"`

	// ContentHash is the 64-bit fingerprint of the page content as hex,
	// used for run-to-run change detection.
	ContentHash string `json:"content_hash,omitempty"`

	// Changed reports whether the content fingerprint differs from the
	// previous stored run of the same host. Nil when there is none.
	Changed *bool `json:"changed,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Warnings lists non-fatal degradations (failed metadata, OCR,
	// report or store steps) that did not overturn the result.
	Warnings []string `json:"warnings,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// Metadata holds page-level information extracted from the rendered HTML.
type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
	Author      string `json:"author,omitempty"`
	Language    string `json:"language,omitempty"`
	Canonical   string `json:"canonical,omitempty"`
	Favicon     string `json:"favicon,omitempty"`
	Excerpt     string `json:"excerpt,omitempty"`
	SourceURL   string `json:"source_url"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// NavigationMs is the time spent navigating and waiting for load.
	NavigationMs int64 `json:"navigation_ms"`

	// ScrollMs is the time spent in the scroll loop plus settle delay.
	ScrollMs int64 `json:"scroll_ms"`

	// DetectMs is the time spent measuring and partitioning sections.
	DetectMs int64 `json:"detect_ms"`

	// CaptureMs is the time spent producing the full-page raster.
	CaptureMs int64 `json:"capture_ms"`

	// SliceMs is the time spent cropping and persisting sections.
	SliceMs int64 `json:"slice_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
	BrowserPID  int `json:"browser_pid"`
}
