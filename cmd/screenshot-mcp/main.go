// Command screenshot-mcp exposes the section-capture API as MCP tools
// over stdio, so an agent can capture pages, browse run history and
// caption crops without speaking HTTP itself.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// analyzeRequest mirrors the analyze API request model.
type analyzeRequest struct {
	URL        string `json:"url"`
	Stealth    bool   `json:"stealth,omitempty"`
	Thumbnails bool   `json:"thumbnails,omitempty"`
	PDFReport  bool   `json:"pdf_report,omitempty"`
	Fresh      bool   `json:"fresh,omitempty"`
}

// analyzeResponse mirrors the analyze API response model.
type analyzeResponse struct {
	Success   bool   `json:"success"`
	URL       string `json:"url"`
	FinalURL  string `json:"final_url"`
	Namespace string `json:"namespace"`
	Sections  []struct {
		Index int    `json:"index"`
		File  string `json:"file"`
		Rect  struct {
			Left   int `json:"left"`
			Top    int `json:"top"`
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"rect"`
	} `json:"sections"`
	SectionCount int `json:"section_count"`
	SkippedCount int `json:"skipped_count"`
	PageHeight   int `json:"page_height"`
	Metadata     *struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		SiteName    string `json:"site_name"`
	} `json:"metadata"`
	Warnings []string `json:"warnings"`
	Error    *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// runsResponse mirrors the run-history list API response.
type runsResponse struct {
	Runs []struct {
		Namespace    string `json:"namespace"`
		URL          string `json:"url"`
		Title        string `json:"title"`
		SectionCount int    `json:"section_count"`
		CreatedAt    string `json:"created_at"`
	} `json:"runs"`
	Total int `json:"total"`
}

// describeResponse mirrors the describe API response model.
type describeResponse struct {
	Success      bool `json:"success"`
	Descriptions []struct {
		Index       int    `json:"index"`
		File        string `json:"file"`
		Description string `json:"description"`
	} `json:"descriptions"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiURL := os.Getenv("SCREENSHOT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("SCREENSHOT_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "SCREENSHOT_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"screenshot",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	analyzePageTool := mcp.NewTool("analyze_page",
		mcp.WithDescription("Render a web page in a headless browser, detect its visually distinct sections, and save one cropped screenshot per section. Returns the run namespace and the section geometry."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the web page to capture"),
		),
		mcp.WithBoolean("stealth",
			mcp.Description("Mask automation fingerprints before navigation"),
		),
		mcp.WithBoolean("thumbnails",
			mcp.Description("Also write a thumbnail next to every crop"),
		),
		mcp.WithBoolean("pdf_report",
			mcp.Description("Assemble all crops into a contact-sheet PDF"),
		),
		mcp.WithBoolean("fresh",
			mcp.Description("Bypass the response cache for this capture"),
		),
	)
	s.AddTool(analyzePageTool, handleAnalyzePage(apiURL, apiKey))

	listRunsTool := mcp.NewTool("list_runs",
		mcp.WithDescription("List recent capture runs, newest first, with their namespaces and section counts."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of runs to return (default: 20, max: 100)"),
		),
	)
	s.AddTool(listRunsTool, handleListRuns(apiURL, apiKey))

	describeSectionTool := mcp.NewTool("describe_section",
		mcp.WithDescription("Caption the section crops of a finished run with a vision model. Requires the run namespace from analyze_page or list_runs."),
		mcp.WithString("namespace",
			mcp.Required(),
			mcp.Description("The run namespace holding the crops"),
		),
		mcp.WithNumber("index",
			mcp.Description("1-based crop number; omit to caption every crop"),
		),
		mcp.WithString("prompt",
			mcp.Description("Override the default captioning instruction"),
		),
	)
	s.AddTool(describeSectionTool, handleDescribeSection(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the capture API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// apiGet sends a GET request to the capture API and returns the response body.
func apiGet(ctx context.Context, client *http.Client, apiURL, apiKey, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func handleAnalyzePage(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 300 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		reqBody := analyzeRequest{
			URL:        url,
			Stealth:    request.GetBool("stealth", false),
			Thumbnails: request.GetBool("thumbnails", false),
			PDFReport:  request.GetBool("pdf_report", false),
			Fresh:      request.GetBool("fresh", false),
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/analyze", reqBody)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("analyze request failed: %v", err)), nil
		}

		var analyzeResp analyzeResponse
		if err := json.Unmarshal(respBody, &analyzeResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !analyzeResp.Success {
			errMsg := "analyze failed"
			if analyzeResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", analyzeResp.Error.Code, analyzeResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		var sb strings.Builder
		title := ""
		if analyzeResp.Metadata != nil {
			title = analyzeResp.Metadata.Title
		}
		sb.WriteString(fmt.Sprintf("Captured %s (%s)\n", analyzeResp.FinalURL, title))
		sb.WriteString(fmt.Sprintf("Namespace: %s\n", analyzeResp.Namespace))
		sb.WriteString(fmt.Sprintf("Page height: %dpx, sections: %d, skipped: %d\n\n",
			analyzeResp.PageHeight, analyzeResp.SectionCount, analyzeResp.SkippedCount))

		for _, sec := range analyzeResp.Sections {
			sb.WriteString(fmt.Sprintf("[%d] %s — %dx%d at (%d,%d)\n",
				sec.Index, sec.File, sec.Rect.Width, sec.Rect.Height, sec.Rect.Left, sec.Rect.Top))
		}
		for _, w := range analyzeResp.Warnings {
			sb.WriteString("warning: " + w + "\n")
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleListRuns(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := "/api/v1/runs"
		if limit := request.GetInt("limit", 0); limit > 0 {
			path = fmt.Sprintf("%s?limit=%d", path, limit)
		}

		respBody, err := apiGet(ctx, client, apiURL, apiKey, path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("runs request failed: %v", err)), nil
		}

		var runsResp runsResponse
		if err := json.Unmarshal(respBody, &runsResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse runs response: %v", err)), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("%d runs:\n\n", runsResp.Total))
		for _, run := range runsResp.Runs {
			sb.WriteString(fmt.Sprintf("%s — %s (%q, %d sections, %s)\n",
				run.Namespace, run.URL, run.Title, run.SectionCount, run.CreatedAt))
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleDescribeSection(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		namespace, err := request.RequireString("namespace")
		if err != nil {
			return mcp.NewToolResultError("namespace is required"), nil
		}

		payload := map[string]interface{}{"namespace": namespace}
		if index := request.GetInt("index", 0); index > 0 {
			payload["index"] = index
		}
		if prompt := request.GetString("prompt", ""); prompt != "" {
			payload["prompt"] = prompt
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/describe", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("describe request failed: %v", err)), nil
		}

		var descResp describeResponse
		if err := json.Unmarshal(respBody, &descResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse describe response: %v", err)), nil
		}

		if !descResp.Success {
			errMsg := "describe failed"
			if descResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", descResp.Error.Code, descResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		var sb strings.Builder
		for _, d := range descResp.Descriptions {
			sb.WriteString(fmt.Sprintf("[%d] %s\n%s\n\n", d.Index, d.File, d.Description))
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}
