package renderer

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

// trackerDomains is a set of well-known analytics and telemetry hosts.
// Blocking them speeds navigation up and stops beacons firing during
// the scroll loop, without touching anything the page renders.
var trackerDomains = map[string]struct{}{
	"google-analytics.com":   {},
	"googletagmanager.com":   {},
	"googletagservices.com":  {},
	"doubleclick.net":        {},
	"googlesyndication.com":  {},
	"googleadservices.com":   {},
	"connect.facebook.net":   {},
	"facebook.net":           {},
	"analytics.twitter.com":  {},
	"ads-twitter.com":        {},
	"static.ads-twitter.com": {},
	"scorecardresearch.com":  {},
	"quantserve.com":         {},
	"hotjar.com":             {},
	"mixpanel.com":           {},
	"segment.io":             {},
	"segment.com":            {},
	"chartbeat.com":          {},
	"chartbeat.net":          {},
	"optimizely.com":         {},
	"amplitude.com":          {},
	"fullstory.com":          {},
	"mouseflow.com":          {},
	"clarity.ms":             {},
	"newrelic.com":           {},
	"nr-data.net":            {},
	"sentry.io":              {},
	"bugsnag.com":            {},
	"demdex.net":             {},
	"krxd.net":               {},
	"bluekai.com":            {},
	"sharethis.com":          {},
	"addthis.com":            {},
	"criteo.com":             {},
	"criteo.net":             {},
	"adnxs.com":              {},
	"adsrvr.org":             {},
	"amazon-adsystem.com":    {},
	"outbrain.com":           {},
	"taboola.com":            {},
	"moatads.com":            {},
	"pubmatic.com":           {},
	"rubiconproject.com":     {},
}

// visualResourceTypes are request types that can affect what the raster
// looks like. These are never blocked, whatever host serves them.
var visualResourceTypes = map[proto.NetworkResourceType]struct{}{
	proto.NetworkResourceTypeDocument:   {},
	proto.NetworkResourceTypeStylesheet: {},
	proto.NetworkResourceTypeImage:      {},
	proto.NetworkResourceTypeFont:       {},
	proto.NetworkResourceTypeMedia:      {},
}

// isTrackerDomain checks a hostname and its parent domains against the
// tracker blocklist.
func isTrackerDomain(host string) bool {
	host = strings.ToLower(host)
	if _, ok := trackerDomains[host]; ok {
		return true
	}
	// e.g. "www.google-analytics.com" → "google-analytics.com".
	for {
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
		if _, ok := trackerDomains[host]; ok {
			return true
		}
	}
}

// setupHijack installs a request interceptor that drops non-visual
// requests to known tracker hosts. Returns the running HijackRouter so
// the caller can defer router.Stop().
func setupHijack(page *rod.Page) *rod.HijackRouter {
	router := page.HijackRequests()

	// Pattern "*" + empty resourceType = intercept ALL requests, then
	// decide per-request whether to block or continue.
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if _, visual := visualResourceTypes[ctx.Request.Type()]; !visual {
			if u, err := url.Parse(ctx.Request.URL().String()); err == nil && isTrackerDomain(u.Hostname()) {
				ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
				return
			}
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// router.Run() blocks, so it must live in its own goroutine.
	// It will exit when router.Stop() is called.
	go router.Run()

	return router
}

// refererHeader makes the first navigation look like organic search
// traffic for the target host.
func refererHeader(host string) proto.NetworkHeaders {
	return proto.NetworkHeaders{
		"Referer": gson.New("https://www.google.com/search?q=" + url.QueryEscape(host)),
	}
}
