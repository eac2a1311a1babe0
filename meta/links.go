package meta

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractLinks collects the absolute http(s) links of a rendered page,
// deduplicated and sorted. With sameHostOnly, links leaving the source
// host are dropped. Fragments are stripped so anchor variants of one
// page collapse into a single entry.
func ExtractLinks(rawHTML, sourceURL string, sameHostOnly bool) []string {
	base, err := url.Parse(sourceURL)
	if err != nil {
		return []string{}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return []string{}
	}

	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		// Skips javascript:, mailto:, tel: and friends.
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		if sameHostOnly && !strings.EqualFold(resolved.Host, base.Host) {
			return
		}
		resolved.Fragment = ""
		seen[resolved.String()] = struct{}{}
	})

	links := make([]string, 0, len(seen))
	for u := range seen {
		links = append(links, u)
	}
	sort.Strings(links)
	return links
}
