package cache

import (
	"testing"
	"time"

	"github.com/faiz-00/screenshot/models"
)

func okResponse(ns string) *models.AnalyzeResponse {
	return &models.AnalyzeResponse{Success: true, Namespace: ns}
}

func TestCacheHitAndExpiry(t *testing.T) {
	c := New(10, 50*time.Millisecond)
	defer c.Stop()

	key := Key(&models.AnalyzeRequest{URL: "https://acme.test/"})
	if _, hit := c.Get(key); hit {
		t.Fatal("empty cache reported a hit")
	}

	c.Set(key, okResponse("run-1"))
	got, hit := c.Get(key)
	if !hit || got.Namespace != "run-1" {
		t.Fatalf("expected hit with run-1, got %v %v", got, hit)
	}

	time.Sleep(70 * time.Millisecond)
	if _, hit := c.Get(key); hit {
		t.Error("entry should expire after the TTL")
	}
}

func TestCacheNeverStoresFailures(t *testing.T) {
	c := New(10, time.Minute)
	defer c.Stop()

	key := Key(&models.AnalyzeRequest{URL: "https://acme.test/"})
	c.Set(key, &models.AnalyzeResponse{Success: false})
	c.Set(key, nil)
	if _, hit := c.Get(key); hit {
		t.Error("failed responses must not be cached")
	}
}

func TestCacheCapacityEviction(t *testing.T) {
	c := New(2, time.Minute)
	defer c.Stop()

	c.Set("a", okResponse("a"))
	c.Set("b", okResponse("b"))
	c.Set("c", okResponse("c"))

	hits := 0
	for _, k := range []string{"a", "b", "c"} {
		if _, hit := c.Get(k); hit {
			hits++
		}
	}
	if hits != 2 {
		t.Errorf("cache over capacity: %d live entries, want 2", hits)
	}
}

func TestKeyCoversOptions(t *testing.T) {
	base := &models.AnalyzeRequest{URL: "https://acme.test/"}

	variants := []*models.AnalyzeRequest{
		{URL: "https://acme.test/other"},
		{URL: "https://acme.test/", Stealth: true},
		{URL: "https://acme.test/", Thumbnails: true},
		{URL: "https://acme.test/", OCR: true},
		{URL: "https://acme.test/", PDFReport: true},
		{URL: "https://acme.test/", BlockTrackers: boolPtr(false)},
	}
	baseKey := Key(base)
	for i, v := range variants {
		if Key(v) == baseKey {
			t.Errorf("variant %d collides with the base key", i)
		}
	}

	// Fresh controls lookup, not identity.
	fresh := &models.AnalyzeRequest{URL: "https://acme.test/", Fresh: true}
	if Key(fresh) != baseKey {
		t.Error("fresh must not change the cache key")
	}
}

func boolPtr(b bool) *bool { return &b }
