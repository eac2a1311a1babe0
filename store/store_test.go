package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/faiz-00/screenshot/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(ns string, createdAt time.Time) *Run {
	return &Run{
		Namespace:    ns,
		URL:          "https://acme.test/",
		FinalURL:     "https://acme.test/home",
		Host:         "acme.test",
		Title:        "Acme",
		SectionCount: 2,
		SkippedCount: 1,
		ContentHash:  "deadbeefcafe0123",
		DurationMs:   4200,
		CreatedAt:    createdAt,
		Crops: []models.SectionImage{
			{Index: 1, File: "section_1.png", Rect: models.CropRect{Left: 0, Top: 0, Width: 1280, Height: 600}},
			{Index: 2, File: "section_2.png", Rect: models.CropRect{Left: 0, Top: 600, Width: 1280, Height: 400}, Text: "hello"},
		},
	}
}

func TestInsertAndGetRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	if err := s.InsertRun(ctx, sampleRun("acme.test_20260829T120000.000", now)); err != nil {
		t.Fatalf("insert run: %v", err)
	}

	got, err := s.GetRun(ctx, "acme.test_20260829T120000.000")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.URL != "https://acme.test/" || got.Host != "acme.test" {
		t.Errorf("run fields wrong: %+v", got)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, now)
	}
	if len(got.Crops) != 2 {
		t.Fatalf("crops = %d, want 2", len(got.Crops))
	}
	if got.Crops[1].Text != "hello" {
		t.Errorf("crop text = %q", got.Crops[1].Text)
	}
	if got.Crops[0].Rect.Height != 600 {
		t.Errorf("crop rect = %+v", got.Crops[0].Rect)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, ns := range []string{"first", "second", "third"} {
		run := sampleRun(ns, base.Add(time.Duration(i)*time.Minute))
		run.Crops = nil
		if err := s.InsertRun(ctx, run); err != nil {
			t.Fatalf("insert %s: %v", ns, err)
		}
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].Namespace != "third" || runs[1].Namespace != "second" {
		t.Errorf("order wrong: %s, %s", runs[0].Namespace, runs[1].Namespace)
	}
}

func TestLatestRunForHost(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	old := sampleRun("old", base.Add(-time.Hour))
	old.Crops = nil
	old.ContentHash = "1111"
	latest := sampleRun("latest", base)
	latest.Crops = nil
	latest.ContentHash = "2222"
	other := sampleRun("other-host", base)
	other.Crops = nil
	other.Host = "other.test"

	for _, r := range []*Run{old, latest, other} {
		if err := s.InsertRun(ctx, r); err != nil {
			t.Fatalf("insert %s: %v", r.Namespace, err)
		}
	}

	got, err := s.LatestRunForHost(ctx, "acme.test")
	if err != nil {
		t.Fatalf("latest run: %v", err)
	}
	if got.Namespace != "latest" || got.ContentHash != "2222" {
		t.Errorf("got %+v, want the newest acme.test run", got)
	}

	if _, err := s.LatestRunForHost(ctx, "unknown.test"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
