package meta

import (
	"reflect"
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html>
<html lang="en">
<head>
	<title>Acme Widgets — Home</title>
	<meta name="description" content="The finest widgets on the internet.">
	<meta property="og:site_name" content="Acme Widgets">
	<link rel="canonical" href="/home">
	<link rel="icon" href="/static/favicon.png">
</head>
<body>
	<nav><a href="/pricing">Pricing</a></nav>
	<main>
		<h1>Widgets for everyone</h1>
		<p>We build widgets that make your life measurably better, with a
		full paragraph of content so extraction has something to chew on.</p>
		<a href="/docs">Docs</a>
		<a href="https://github.com/acme/widgets">Source</a>
		<a href="/docs#install">Install</a>
		<a href="mailto:hi@acme.test">Mail us</a>
	</main>
	<footer>We use cookies</footer>
</body>
</html>`

func TestExtractMetadata(t *testing.T) {
	e := New(nil)
	res := e.Extract(samplePage, "https://acme.test/landing")

	m := res.Metadata
	if m.Title != "Acme Widgets — Home" {
		t.Errorf("title = %q", m.Title)
	}
	if m.Description != "The finest widgets on the internet." {
		t.Errorf("description = %q", m.Description)
	}
	if m.SiteName != "Acme Widgets" {
		t.Errorf("site name = %q", m.SiteName)
	}
	if m.Language != "en" {
		t.Errorf("language = %q", m.Language)
	}
	if m.Canonical != "https://acme.test/home" {
		t.Errorf("canonical = %q", m.Canonical)
	}
	if m.Favicon != "https://acme.test/static/favicon.png" {
		t.Errorf("favicon = %q", m.Favicon)
	}
	if m.SourceURL != "https://acme.test/landing" {
		t.Errorf("source url = %q", m.SourceURL)
	}
}

func TestExtractMarkdownSnapshot(t *testing.T) {
	e := New(nil)
	res := e.Extract(samplePage, "https://acme.test/landing")

	if !strings.Contains(res.Markdown, "Widgets for everyone") {
		t.Errorf("markdown missing heading:\n%s", res.Markdown)
	}
	if !strings.Contains(res.Markdown, "measurably better") {
		t.Errorf("markdown missing body text:\n%s", res.Markdown)
	}
	if strings.Contains(strings.ToLower(res.Markdown), "we use cookies") {
		t.Errorf("markdown kept cookie boilerplate:\n%s", res.Markdown)
	}
}

func TestExtractEmptyHTML(t *testing.T) {
	e := New(nil)
	res := e.Extract("", "https://acme.test/")
	if res.Markdown != "" {
		t.Errorf("empty page produced markdown: %q", res.Markdown)
	}
	if res.Metadata.SourceURL != "https://acme.test/" {
		t.Errorf("source url = %q", res.Metadata.SourceURL)
	}
}

func TestExtractLinks(t *testing.T) {
	t.Run("same host only", func(t *testing.T) {
		got := ExtractLinks(samplePage, "https://acme.test/landing", true)
		want := []string{
			"https://acme.test/docs",
			"https://acme.test/pricing",
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("links = %v, want %v", got, want)
		}
	})

	t.Run("all hosts", func(t *testing.T) {
		got := ExtractLinks(samplePage, "https://acme.test/landing", false)
		if len(got) != 3 {
			t.Fatalf("links = %v, want 3 entries", got)
		}
		if got[len(got)-1] != "https://github.com/acme/widgets" {
			t.Errorf("external link missing: %v", got)
		}
	})

	t.Run("fragments collapse", func(t *testing.T) {
		got := ExtractLinks(samplePage, "https://acme.test/landing", true)
		for _, u := range got {
			if strings.Contains(u, "#") {
				t.Errorf("fragment survived: %s", u)
			}
		}
	})
}

func TestFilterJunkLines(t *testing.T) {
	in := "# Title\n\n\n\nAccept all cookies\n\nReal paragraph text.\n"
	got := filterJunkLines(in)
	if strings.Contains(got, "cookies") {
		t.Errorf("junk line survived: %q", got)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("blank run survived: %q", got)
	}
	if !strings.Contains(got, "Real paragraph text.") {
		t.Errorf("content dropped: %q", got)
	}
}
