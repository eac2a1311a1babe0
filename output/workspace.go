// Package output manages the per-run artifact directories under the
// configured output root.
package output

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Well-known artifact names inside a run directory.
const (
	// RasterFile is the transient full-page capture consumed by slicing.
	RasterFile = "fullpage.png"

	// MarkdownFile is the stored markdown snapshot of the page content.
	MarkdownFile = "page.md"

	// ReportFile is the optional contact-sheet PDF.
	ReportFile = "report.pdf"
)

// namespacePattern is the shape of a stored run directory name. Anything
// else in an API path is rejected before touching the filesystem.
var namespacePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

var hostCleaner = regexp.MustCompile(`[^a-z0-9.-]+`)

// Workspace hands out one directory per analysis run. Namespaces embed
// the target host and a millisecond timestamp, so concurrent runs on
// different URLs never share state and repeated runs never collide.
type Workspace struct {
	root string
}

// New creates a Workspace rooted at dir.
func New(dir string) *Workspace {
	return &Workspace{root: dir}
}

// Root returns the output root directory.
func (w *Workspace) Root() string {
	return w.root
}

// NewRun reserves a fresh run directory for the target URL and returns
// its namespace and absolute path. On a (rare) namespace collision the
// name gets a numeric suffix instead of reusing the directory.
func (w *Workspace) NewRun(rawURL string, now time.Time) (string, string, error) {
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return "", "", fmt.Errorf("create output root: %w", err)
	}

	base := Namespace(rawURL, now)
	ns := base
	for attempt := 2; ; attempt++ {
		dir := filepath.Join(w.root, ns)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return ns, dir, nil
		}
		if !os.IsExist(err) {
			return "", "", fmt.Errorf("create run dir: %w", err)
		}
		if attempt > 10 {
			return "", "", fmt.Errorf("could not reserve a run dir for %q", base)
		}
		ns = fmt.Sprintf("%s_%d", base, attempt)
	}
}

// ResolveRun validates a namespace taken from an API request and returns
// the existing run directory it names.
func (w *Workspace) ResolveRun(namespace string) (string, error) {
	if !namespacePattern.MatchString(namespace) || strings.Contains(namespace, "..") {
		return "", fmt.Errorf("invalid namespace %q", namespace)
	}
	dir := filepath.Join(w.root, namespace)
	info, err := os.Stat(dir)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("namespace %q is not a run directory", namespace)
	}
	return dir, nil
}

// Namespace derives the run directory name from the target host and a
// timestamp: "<host>_<yyyymmddThhmmss.mmm>".
func Namespace(rawURL string, now time.Time) string {
	host := "page"
	if u, err := url.Parse(rawURL); err == nil {
		if h := sanitizeHost(u.Hostname()); h != "" {
			host = h
		}
	}
	return host + "_" + now.UTC().Format("20060102T150405.000")
}

// sanitizeHost lowercases the host and squeezes anything outside
// [a-z0-9.-] so the namespace is always a safe directory name.
func sanitizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = hostCleaner.ReplaceAllString(host, "-")
	return strings.Trim(host, "-.")
}
