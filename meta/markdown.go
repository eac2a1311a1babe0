package meta

import (
	"bytes"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// mdConverter wraps a reusable html-to-markdown converter.
type mdConverter struct {
	c *converter.Converter
}

// newMarkdownConverter builds the converter used for every snapshot:
//
//   - base plugin: strips script, style, iframe, noscript, head, meta,
//     link, input, textarea, HTML comments.
//   - commonmark plugin: standard Markdown rendering.
//   - table plugin: preserves table structure with minimal cell padding.
func newMarkdownConverter() *mdConverter {
	return &mdConverter{
		c: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(
					table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
				),
			),
		),
	}
}

// convert turns clean HTML into Markdown. The domain resolves relative
// URLs in links and images so the snapshot is self-contained.
func (m *mdConverter) convert(htmlContent, domain string) (string, error) {
	return m.c.ConvertString(htmlContent, converter.WithDomain(domain))
}

// contentRootSelectors pick the page's main content region, tried in
// preference order. Body is the always-matching fallback.
var contentRootSelectors = []cascadia.Selector{
	cascadia.MustCompile("main"),
	cascadia.MustCompile("[role=main]"),
	cascadia.MustCompile("article"),
	cascadia.MustCompile("body"),
}

// boilerplateSelector matches nodes that never belong in a content
// snapshot.
var boilerplateSelector = cascadia.MustCompile("nav, aside, footer, header, script, style, noscript, form")

// contentRoot selects the main content region of the rendered DOM and
// prunes boilerplate from it, returning the remaining outer HTML. Used
// when readability cannot locate the content itself.
func contentRoot(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}
	var root *html.Node
	for _, sel := range contentRootSelectors {
		if root = cascadia.Query(doc, sel); root != nil {
			break
		}
	}
	if root == nil {
		return rawHTML
	}

	for _, n := range cascadia.QueryAll(root, boilerplateSelector) {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return rawHTML
	}
	return buf.String()
}

// junk line fragments that survive conversion on almost every page.
var junkFragments = []string{
	"accept cookies",
	"accept all cookies",
	"cookie settings",
	"we use cookies",
	"subscribe to our newsletter",
	"sign up for our newsletter",
	"skip to content",
	"skip to main content",
	"advertisement",
}

// filterJunkLines drops boilerplate lines the DOM pruning missed and
// squeezes runs of blank lines.
func filterJunkLines(md string) string {
	lines := strings.Split(md, "\n")
	out := make([]string, 0, len(lines))
	blanks := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			blanks++
			if blanks > 1 {
				continue
			}
			out = append(out, "")
			continue
		}
		blanks = 0
		if isJunkLine(trimmed) {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func isJunkLine(line string) bool {
	// Only short standalone lines qualify; a paragraph that happens to
	// mention cookies is content.
	if len(line) > 80 {
		return false
	}
	lower := strings.ToLower(line)
	for _, frag := range junkFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}
