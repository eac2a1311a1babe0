// Command benchmark measures analyze latency and section yield across a
// spread of site types against a running instance of the service.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// CLI flags
var (
	apiURL = flag.String("api-url", "http://localhost:8080", "Capture API base URL")
	apiKey = flag.String("api-key", "", "API key for authenticated requests")
	runs   = flag.Int("runs", 3, "Number of runs per URL for averaging")
	output = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Test URLs covering 5 site types.
var testURLs = []struct {
	Label string
	URL   string
}{
	{"Static", "https://example.com"},
	{"Blog", "https://go.dev/blog/go1.21"},
	{"Docs", "https://go.dev/doc/effective_go"},
	{"News", "https://www.bbc.com/news"},
	{"Complex", "https://github.com/go-rod/rod"},
}

// --- Request / Response types (mirrors models package) ---

type analyzeRequest struct {
	URL     string `json:"url"`
	Timeout int    `json:"timeout"`
	Fresh   bool   `json:"fresh"`
}

type analyzeResponse struct {
	Success      bool         `json:"success"`
	Namespace    string       `json:"namespace"`
	SectionCount int          `json:"section_count"`
	SkippedCount int          `json:"skipped_count"`
	PageHeight   int          `json:"page_height"`
	Metadata     metadata     `json:"metadata"`
	Timing       timingInfo   `json:"timing"`
	Error        *errorDetail `json:"error,omitempty"`
}

type metadata struct {
	Title string `json:"title"`
}

type timingInfo struct {
	TotalMs      int64 `json:"total_ms"`
	NavigationMs int64 `json:"navigation_ms"`
	ScrollMs     int64 `json:"scroll_ms"`
	DetectMs     int64 `json:"detect_ms"`
	CaptureMs    int64 `json:"capture_ms"`
	SliceMs      int64 `json:"slice_ms"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Benchmark result types ---

type runResult struct {
	Run          int    `json:"run"`
	TotalMs      int64  `json:"total_ms"`
	NavigationMs int64  `json:"navigation_ms"`
	ScrollMs     int64  `json:"scroll_ms"`
	CaptureMs    int64  `json:"capture_ms"`
	SliceMs      int64  `json:"slice_ms"`
	Sections     int    `json:"sections"`
	Skipped      int    `json:"skipped"`
	PageHeight   int    `json:"page_height"`
	HasTitle     bool   `json:"has_title"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

type urlAverages struct {
	TotalMs      float64 `json:"total_ms"`
	NavigationMs float64 `json:"navigation_ms"`
	ScrollMs     float64 `json:"scroll_ms"`
	CaptureMs    float64 `json:"capture_ms"`
	SliceMs      float64 `json:"slice_ms"`
	Sections     float64 `json:"sections"`
	PageHeight   float64 `json:"page_height"`
}

type urlResult struct {
	URL      string       `json:"url"`
	Label    string       `json:"label"`
	Runs     []runResult  `json:"runs"`
	Averages *urlAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp  string      `json:"timestamp"`
	APIURL     string      `json:"api_url"`
	RunsPerURL int         `json:"runs_per_url"`
	Results    []urlResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== Section Capture Benchmark Suite ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("Runs/URL:  %d\n", *runs)
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	// Quick connectivity check.
	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure the service is running (e.g. make run)\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     *apiURL,
		RunsPerURL: *runs,
	}

	for _, t := range testURLs {
		fmt.Printf("Benchmarking [%s] %s ...\n", t.Label, t.URL)
		ur := urlResult{URL: t.URL, Label: t.Label}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkURL(t.URL, i)
			if rr.Success {
				fmt.Printf("OK  %dms  %d sections  %dpx\n", rr.TotalMs, rr.Sections, rr.PageHeight)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			ur.Runs = append(ur.Runs, rr)
		}

		ur.Averages = computeAverages(ur.Runs)
		report.Results = append(report.Results, ur)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func benchmarkURL(url string, run int) runResult {
	rr := runResult{Run: run}

	// Fresh keeps the cache out of the measurement.
	reqBody := analyzeRequest{
		URL:     url,
		Timeout: 120,
		Fresh:   true,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest("POST", *apiURL+"/api/v1/analyze", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	client := &http.Client{Timeout: 180 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	var ar analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	rr.Success = ar.Success
	rr.TotalMs = ar.Timing.TotalMs
	rr.NavigationMs = ar.Timing.NavigationMs
	rr.ScrollMs = ar.Timing.ScrollMs
	rr.CaptureMs = ar.Timing.CaptureMs
	rr.SliceMs = ar.Timing.SliceMs
	rr.Sections = ar.SectionCount
	rr.Skipped = ar.SkippedCount
	rr.PageHeight = ar.PageHeight
	rr.HasTitle = ar.Metadata.Title != ""

	if ar.Error != nil {
		rr.Error = ar.Error.Message
	}

	return rr
}

func computeAverages(runs []runResult) *urlAverages {
	var successCount int
	var avg urlAverages

	for _, r := range runs {
		if !r.Success {
			continue
		}
		successCount++
		avg.TotalMs += float64(r.TotalMs)
		avg.NavigationMs += float64(r.NavigationMs)
		avg.ScrollMs += float64(r.ScrollMs)
		avg.CaptureMs += float64(r.CaptureMs)
		avg.SliceMs += float64(r.SliceMs)
		avg.Sections += float64(r.Sections)
		avg.PageHeight += float64(r.PageHeight)
	}

	if successCount == 0 {
		return nil
	}

	n := float64(successCount)
	avg.TotalMs /= n
	avg.NavigationMs /= n
	avg.ScrollMs /= n
	avg.CaptureMs /= n
	avg.SliceMs /= n
	avg.Sections /= n
	avg.PageHeight /= n
	return &avg
}

func printTable(results []urlResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "URL\tAvg Latency\tSections\tPage Height\tScroll\tCapture\n")
	fmt.Fprintf(w, "───\t───────────\t────────\t───────────\t──────\t───────\n")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\t-\n", truncateURL(r.URL, 40))
			continue
		}

		fmt.Fprintf(w, "%s\t%dms\t%.1f\t%spx\t%dms\t%dms\n",
			truncateURL(r.URL, 40),
			int64(r.Averages.TotalMs),
			r.Averages.Sections,
			formatInt(int(r.Averages.PageHeight)),
			int64(r.Averages.ScrollMs),
			int64(r.Averages.CaptureMs),
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

func truncateURL(u string, max int) string {
	if len(u) <= max {
		return u
	}
	return u[:max-3] + "..."
}

func formatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var result []byte
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
