package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNamespace_HostAndTimestamp(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 589*int(time.Millisecond), time.UTC)

	tests := []struct {
		name string
		url  string
		want string
	}{
		{"plain host", "https://example.com/pricing", "example.com_20260314T092653.589"},
		{"port stripped", "https://example.com:8443/", "example.com_20260314T092653.589"},
		{"uppercase lowered", "https://EXAMPLE.Com", "example.com_20260314T092653.589"},
		{"unparseable url", "::not a url::", "page_20260314T092653.589"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Namespace(tt.url, at); got != tt.want {
				t.Errorf("Namespace(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestNamespace_RepeatedRunsDiffer(t *testing.T) {
	a := Namespace("https://example.com", time.Date(2026, 3, 14, 9, 26, 53, 100e6, time.UTC))
	b := Namespace("https://example.com", time.Date(2026, 3, 14, 9, 26, 53, 101e6, time.UTC))
	if a == b {
		t.Errorf("namespaces for distinct instants collide: %q", a)
	}
}

func TestNewRun_CreatesDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "captures"))

	ns, dir, err := w.NewRun("https://example.com", time.Now())
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	if !strings.HasPrefix(ns, "example.com_") {
		t.Errorf("namespace = %q", ns)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("run dir not created: %v", err)
	}
}

func TestNewRun_CollisionGetsSuffix(t *testing.T) {
	w := New(t.TempDir())
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	ns1, _, err := w.NewRun("https://example.com", at)
	if err != nil {
		t.Fatal(err)
	}
	ns2, _, err := w.NewRun("https://example.com", at)
	if err != nil {
		t.Fatal(err)
	}
	if ns1 == ns2 {
		t.Fatalf("colliding runs share namespace %q", ns1)
	}
	if !strings.HasPrefix(ns2, ns1) {
		t.Errorf("second namespace %q does not extend %q", ns2, ns1)
	}
}

func TestResolveRun_RejectsTraversal(t *testing.T) {
	w := New(t.TempDir())

	for _, bad := range []string{"../etc", "a/b", "", ".hidden", "x x", "a\\b"} {
		if _, err := w.ResolveRun(bad); err == nil {
			t.Errorf("namespace %q must be rejected", bad)
		}
	}
}

func TestResolveRun_FindsExistingRun(t *testing.T) {
	w := New(t.TempDir())
	ns, dir, err := w.NewRun("https://example.com", time.Now())
	if err != nil {
		t.Fatal(err)
	}

	got, err := w.ResolveRun(ns)
	if err != nil {
		t.Fatalf("ResolveRun(%q) failed: %v", ns, err)
	}
	if got != dir {
		t.Errorf("ResolveRun = %q, want %q", got, dir)
	}

	if _, err := w.ResolveRun("example.com_19990101T000000.000"); err == nil {
		t.Error("missing run must not resolve")
	}
}
