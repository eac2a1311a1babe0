package handler

import (
	"context"
	"encoding/xml"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/faiz-00/screenshot/meta"
	"github.com/faiz-00/screenshot/models"
	"github.com/faiz-00/screenshot/renderer"
)

// sitemapIndex represents a sitemap index XML file.
type sitemapIndex struct {
	XMLName  xml.Name       `xml:"sitemapindex"`
	Sitemaps []sitemapEntry `xml:"sitemap"`
}

// sitemapEntry is an entry in a sitemap index.
type sitemapEntry struct {
	Loc string `xml:"loc"`
}

// urlset represents a sitemap URL set XML file.
type urlset struct {
	XMLName xml.Name   `xml:"urlset"`
	URLs    []urlEntry `xml:"url"`
}

// urlEntry is a single URL in a sitemap.
type urlEntry struct {
	Loc string `xml:"loc"`
}

// PostMap returns a handler for POST /api/v1/map.
// It discovers candidate capture targets from sitemaps, robots.txt
// Sitemap directives, and the links of the rendered target page.
func PostMap(r *renderer.Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.MapRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.MapResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		parsed, err := url.Parse(req.URL)
		if err != nil || parsed.Hostname() == "" {
			c.JSON(http.StatusBadRequest, models.MapResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "invalid URL",
				},
			})
			return
		}
		baseOrigin := parsed.Scheme + "://" + parsed.Host

		allURLs := make(map[string]struct{})

		// 1. /sitemap.xml
		for _, u := range fetchSitemap(baseOrigin + "/sitemap.xml") {
			allURLs[u] = struct{}{}
		}

		// 2. Sitemap directives in /robots.txt
		for _, sitemapURL := range fetchRobotsSitemaps(baseOrigin + "/robots.txt") {
			for _, u := range fetchSitemap(sitemapURL) {
				allURLs[u] = struct{}{}
			}
		}

		// 3. Links on the rendered target page.
		for _, u := range renderedLinks(c.Request.Context(), r, &req) {
			allURLs[u] = struct{}{}
		}

		urls := make([]string, 0, len(allURLs))
		for u := range allURLs {
			if *req.SameHostOnly && !sameHost(u, parsed.Hostname()) {
				continue
			}
			urls = append(urls, u)
		}

		c.JSON(http.StatusOK, models.MapResponse{
			Success: true,
			URLs:    urls,
			Total:   len(urls),
		})
	}
}

// fetchSitemap fetches and parses a sitemap XML URL, returning discovered URLs.
// It handles both regular sitemaps and sitemap index files.
func fetchSitemap(sitemapURL string) []string {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024)) // 5MB limit
	if err != nil {
		return nil
	}

	var urls []string

	// Try parsing as sitemap index first.
	var idx sitemapIndex
	if err := xml.Unmarshal(body, &idx); err == nil && len(idx.Sitemaps) > 0 {
		for _, s := range idx.Sitemaps {
			if s.Loc != "" {
				urls = append(urls, fetchSitemap(s.Loc)...)
			}
		}
		return urls
	}

	var us urlset
	if err := xml.Unmarshal(body, &us); err == nil {
		for _, u := range us.URLs {
			if u.Loc != "" {
				urls = append(urls, u.Loc)
			}
		}
	}

	return urls
}

// fetchRobotsSitemaps fetches robots.txt and extracts Sitemap: directives.
func fetchRobotsSitemaps(robotsURL string) []string {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024)) // 1MB limit
	if err != nil {
		return nil
	}

	var sitemaps []string
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(line), "sitemap:") {
			sitemapURL := strings.TrimSpace(line[len("sitemap:"):])
			if sitemapURL != "" {
				sitemaps = append(sitemaps, sitemapURL)
			}
		}
	}

	return sitemaps
}

// renderedLinks renders the target page and extracts its links. The
// throwaway raster lands in the OS temp dir and is removed right after.
func renderedLinks(ctx context.Context, r *renderer.Renderer, req *models.MapRequest) []string {
	renderCtx, cancel := context.WithTimeout(ctx, time.Duration(req.Timeout)*time.Second)
	defer cancel()

	rasterPath := filepath.Join(os.TempDir(), "map-"+randomID()+".png")
	defer os.Remove(rasterPath)

	artifacts, err := r.Render(renderCtx, renderer.Request{URL: req.URL}, rasterPath)
	if err != nil {
		slog.Debug("map: failed to render target for links", "url", req.URL, "error", err)
		return nil
	}

	return meta.ExtractLinks(artifacts.HTML, artifacts.FinalURL, *req.SameHostOnly)
}

// sameHost reports whether rawURL points at the given hostname.
func sameHost(rawURL, host string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), host)
}
