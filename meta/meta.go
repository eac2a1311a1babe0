// Package meta extracts page metadata and a markdown snapshot from the
// rendered HTML a run produced. It never fails a run: every extraction
// step degrades to a best-effort fallback.
package meta

import (
	"log/slog"
	nurl "net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/faiz-00/screenshot/models"
)

// maxExcerptLen bounds the stored excerpt.
const maxExcerptLen = 300

// Extractor runs the metadata + snapshot pipeline. The markdown
// converter is created once and reused across all requests
// (goroutine-safe).
type Extractor struct {
	conv *mdConverter
	log  *slog.Logger
}

// New creates an Extractor.
func New(log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{
		conv: newMarkdownConverter(),
		log:  log.With("component", "meta"),
	}
}

// Result is the output of one extraction pass.
type Result struct {
	Metadata models.Metadata

	// Markdown is the cleaned content snapshot, empty when conversion
	// produced nothing usable.
	Markdown string
}

// Extract pulls metadata from meta/OpenGraph tags, falls back to
// readability for the pieces tag soup does not provide, and converts
// the page's content root to markdown.
func (e *Extractor) Extract(rawHTML, sourceURL string) *Result {
	res := &Result{
		Metadata: models.Metadata{SourceURL: sourceURL},
	}
	if strings.TrimSpace(rawHTML) == "" {
		return res
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		e.log.Warn("metadata: unparseable HTML", "url", sourceURL, "error", err)
		return res
	}

	e.fillFromTags(doc, &res.Metadata, sourceURL)

	// Readability recovers title/excerpt/byline on pages without proper
	// meta tags, and feeds the markdown conversion its content HTML.
	article, ok := readArticle(rawHTML, sourceURL, e.log)
	if res.Metadata.Title == "" {
		res.Metadata.Title = article.Title
	}
	if res.Metadata.Author == "" {
		res.Metadata.Author = article.Byline
	}
	if res.Metadata.SiteName == "" {
		res.Metadata.SiteName = article.SiteName
	}
	if res.Metadata.Language == "" {
		res.Metadata.Language = article.Language
	}
	if res.Metadata.Excerpt == "" {
		res.Metadata.Excerpt = clip(article.Excerpt, maxExcerptLen)
	}
	if res.Metadata.Excerpt == "" && ok {
		res.Metadata.Excerpt = clip(strings.TrimSpace(article.TextContent), maxExcerptLen)
	}

	content := article.Content
	if !ok {
		// Readability choked; select the content root straight from the
		// rendered DOM instead.
		content = contentRoot(rawHTML)
	}
	md, err := e.conv.convert(content, sourceURL)
	if err != nil {
		e.log.Warn("markdown conversion failed", "url", sourceURL, "error", err)
		return res
	}
	res.Markdown = filterJunkLines(md)
	return res
}

// fillFromTags reads title/description/OG/canonical/favicon/lang from
// the parsed document.
func (e *Extractor) fillFromTags(doc *goquery.Document, m *models.Metadata, sourceURL string) {
	base, _ := nurl.Parse(sourceURL)

	m.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if lang, ok := doc.Find("html").Attr("lang"); ok {
		m.Language = strings.TrimSpace(lang)
	}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content, _ := s.Attr("content")
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		name, _ := s.Attr("name")
		prop, _ := s.Attr("property")
		switch {
		case name == "description":
			if m.Description == "" {
				m.Description = content
			}
		case name == "author":
			if m.Author == "" {
				m.Author = content
			}
		case prop == "og:title":
			if m.Title == "" {
				m.Title = content
			}
		case prop == "og:description":
			m.Description = content
		case prop == "og:site_name":
			m.SiteName = content
		}
	})

	if href, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
		m.Canonical = resolve(base, href)
	}
	if href, ok := doc.Find(`link[rel="icon"], link[rel="shortcut icon"], link[rel="apple-touch-icon"]`).First().Attr("href"); ok {
		m.Favicon = resolve(base, href)
	} else if base != nil && base.Host != "" {
		m.Favicon = base.Scheme + "://" + base.Host + "/favicon.ico"
	}
}

// minContentLength is the minimum text length for readability output to
// be considered valid; below it the algorithm likely missed the main
// content.
const minContentLength = 50

// readArticle runs the Mozilla Readability algorithm, reporting whether
// the result is trustworthy.
func readArticle(rawHTML, sourceURL string, log *slog.Logger) (readability.Article, bool) {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		return readability.Article{Content: rawHTML}, false
	}
	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		log.Debug("readability extraction failed", "url", sourceURL, "error", err)
		return readability.Article{Content: rawHTML}, false
	}
	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		return readability.Article{Content: rawHTML}, false
	}
	return article, true
}

func resolve(base *nurl.URL, href string) string {
	href = strings.TrimSpace(href)
	if base == nil || href == "" {
		return href
	}
	u, err := base.Parse(href)
	if err != nil {
		return href
	}
	return u.String()
}

func clip(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}
