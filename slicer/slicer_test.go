package slicer

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/faiz-00/screenshot/models"
)

// makeRaster writes a PNG whose pixel colors encode their coordinates,
// so crops can be verified against the source region.
func makeRaster(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x % 251), G: uint8(y % 251), B: uint8((x + y) % 251), A: 255})
		}
	}
	path := filepath.Join(dir, "fullpage.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create raster: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode raster: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close raster: %v", err)
	}
	return path
}

func decodeFile(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return img
}

func TestSlice_ClampAtRasterEdge(t *testing.T) {
	dir := t.TempDir()
	raster := makeRaster(t, dir, 1280, 2000)

	sections := []models.Section{{Left: 1200, Top: 1950, Width: 200, Height: 200}}
	res, err := New(nil).Slice(context.Background(), raster, sections, dir, Options{})
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}

	if len(res.Crops) != 1 {
		t.Fatalf("expected 1 crop, got %d", len(res.Crops))
	}
	got := res.Crops[0].Rect
	want := models.CropRect{Left: 1200, Top: 1950, Width: 80, Height: 50}
	if got != want {
		t.Fatalf("clamped rect = %+v, want %+v", got, want)
	}

	img := decodeFile(t, filepath.Join(dir, "section_1.png"))
	if img.Bounds().Dx() != 80 || img.Bounds().Dy() != 50 {
		t.Errorf("crop dimensions = %dx%d, want 80x50", img.Bounds().Dx(), img.Bounds().Dy())
	}
	// The crop's first pixel must be the raster pixel at (1200, 1950).
	b := img.Bounds()
	r, g, _, _ := img.At(b.Min.X, b.Min.Y).RGBA()
	if uint8(r>>8) != uint8(1200%251) || uint8(g>>8) != uint8(1950%251) {
		t.Errorf("crop origin pixel mismatch: got r=%d g=%d", uint8(r>>8), uint8(g>>8))
	}
}

func TestSlice_DegenerateSectionSkipped(t *testing.T) {
	dir := t.TempDir()
	raster := makeRaster(t, dir, 200, 100)

	sections := []models.Section{
		{Left: 0, Top: 0, Width: 150, Height: 40},
		{Left: 250, Top: 0, Width: 100, Height: 50}, // fully right of the raster
		{Left: 0, Top: 40, Width: 150, Height: 60},
	}
	res, err := New(nil).Slice(context.Background(), raster, sections, dir, Options{})
	if err != nil {
		t.Fatalf("run must survive a degenerate section: %v", err)
	}

	if res.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", res.Skipped)
	}
	if len(res.Crops) != 2 {
		t.Fatalf("expected 2 crops, got %d", len(res.Crops))
	}
	// Skipped sections consume no number: the produced crops are 1 and 2.
	for i, c := range res.Crops {
		if c.Index != i+1 {
			t.Errorf("crop %d has index %d", i, c.Index)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "section_3.png")); !os.IsNotExist(err) {
		t.Error("a third crop file must not exist")
	}
}

func TestSlice_PostClampInvariant(t *testing.T) {
	dir := t.TempDir()
	raster := makeRaster(t, dir, 300, 300)

	sections := []models.Section{
		{Left: -50, Top: -50, Width: 200, Height: 200},
		{Left: 100.7, Top: 250.9, Width: 300, Height: 300},
		{Left: 0, Top: 0, Width: 300, Height: 300},
		{Left: 290, Top: 290, Width: 50, Height: 50},
	}
	res, err := New(nil).Slice(context.Background(), raster, sections, dir, Options{})
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}

	for _, c := range res.Crops {
		r := c.Rect
		if r.Left < 0 || r.Top < 0 {
			t.Errorf("crop %d has negative origin: %+v", c.Index, r)
		}
		if r.Left+r.Width > res.RasterWidth || r.Top+r.Height > res.RasterHeight {
			t.Errorf("crop %d exceeds raster bounds: %+v", c.Index, r)
		}
	}
}

func TestSlice_FractionalCoordinatesFloored(t *testing.T) {
	dir := t.TempDir()
	raster := makeRaster(t, dir, 100, 100)

	sections := []models.Section{{Left: 10.9, Top: 20.99, Width: 50.5, Height: 30.7}}
	res, err := New(nil).Slice(context.Background(), raster, sections, dir, Options{})
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	want := models.CropRect{Left: 10, Top: 20, Width: 50, Height: 30}
	if res.Crops[0].Rect != want {
		t.Errorf("rect = %+v, want %+v", res.Crops[0].Rect, want)
	}
}

func TestSlice_ZeroSections(t *testing.T) {
	dir := t.TempDir()
	raster := makeRaster(t, dir, 100, 100)

	res, err := New(nil).Slice(context.Background(), raster, nil, dir, Options{})
	if err != nil {
		t.Fatalf("zero sections must be a successful outcome: %v", err)
	}
	if len(res.Crops) != 0 || res.Skipped != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
	if _, err := os.Stat(raster); !os.IsNotExist(err) {
		t.Error("raster must be deleted even when there was nothing to crop")
	}
}

func TestSlice_RasterAlwaysDeleted(t *testing.T) {
	t.Run("after skips", func(t *testing.T) {
		dir := t.TempDir()
		raster := makeRaster(t, dir, 100, 100)
		sections := []models.Section{{Left: 500, Top: 0, Width: 10, Height: 10}}
		if _, err := New(nil).Slice(context.Background(), raster, sections, dir, Options{}); err != nil {
			t.Fatalf("Slice failed: %v", err)
		}
		if _, err := os.Stat(raster); !os.IsNotExist(err) {
			t.Error("raster still present after slicing")
		}
	})

	t.Run("after decode failure", func(t *testing.T) {
		dir := t.TempDir()
		raster := filepath.Join(dir, "fullpage.png")
		if err := os.WriteFile(raster, []byte("not a png"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := New(nil).Slice(context.Background(), raster, nil, dir, Options{})
		if err == nil {
			t.Fatal("expected a decode error")
		}
		if _, statErr := os.Stat(raster); !os.IsNotExist(statErr) {
			t.Error("raster must be deleted even when slicing fails")
		}
	})
}

func TestSlice_CropPixelFidelity(t *testing.T) {
	dir := t.TempDir()
	raster := makeRaster(t, dir, 100, 100)

	sections := []models.Section{{Left: 20, Top: 30, Width: 40, Height: 20}}
	if _, err := New(nil).Slice(context.Background(), raster, sections, dir, Options{}); err != nil {
		t.Fatalf("Slice failed: %v", err)
	}

	img := decodeFile(t, filepath.Join(dir, "section_1.png"))
	b := img.Bounds()
	checks := []struct{ dx, dy int }{{0, 0}, {39, 19}, {10, 5}}
	for _, c := range checks {
		r, g, _, _ := img.At(b.Min.X+c.dx, b.Min.Y+c.dy).RGBA()
		wantR := uint8((20 + c.dx) % 251)
		wantG := uint8((30 + c.dy) % 251)
		if uint8(r>>8) != wantR || uint8(g>>8) != wantG {
			t.Errorf("pixel (%d,%d) = r%d g%d, want r%d g%d", c.dx, c.dy, uint8(r>>8), uint8(g>>8), wantR, wantG)
		}
	}
}

func TestSlice_Thumbnails(t *testing.T) {
	dir := t.TempDir()
	raster := makeRaster(t, dir, 400, 400)

	sections := []models.Section{{Left: 0, Top: 0, Width: 400, Height: 200}}
	res, err := New(nil).Slice(context.Background(), raster, sections, dir, Options{Thumbnails: true, ThumbWidth: 100})
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	if res.Crops[0].ThumbFile == "" {
		t.Fatal("thumbnail filename not recorded")
	}
	thumb := decodeFile(t, filepath.Join(dir, res.Crops[0].ThumbFile))
	if thumb.Bounds().Dx() != 100 || thumb.Bounds().Dy() != 50 {
		t.Errorf("thumbnail = %dx%d, want 100x50", thumb.Bounds().Dx(), thumb.Bounds().Dy())
	}
}

func TestClampToRaster(t *testing.T) {
	tests := []struct {
		name string
		in   models.CropRect
		want models.CropRect
	}{
		{"inside", models.CropRect{Left: 10, Top: 10, Width: 50, Height: 50}, models.CropRect{Left: 10, Top: 10, Width: 50, Height: 50}},
		{"overshoot right and bottom", models.CropRect{Left: 1200, Top: 1950, Width: 200, Height: 200}, models.CropRect{Left: 1200, Top: 1950, Width: 80, Height: 50}},
		{"negative origin", models.CropRect{Left: -20, Top: -30, Width: 100, Height: 100}, models.CropRect{Left: 0, Top: 0, Width: 100, Height: 100}},
		{"fully right of raster", models.CropRect{Left: 1300, Top: 0, Width: 100, Height: 100}, models.CropRect{Left: 1300, Top: 0, Width: -20, Height: 100}},
		{"fully below raster", models.CropRect{Left: 0, Top: 2100, Width: 100, Height: 100}, models.CropRect{Left: 0, Top: 2100, Width: 100, Height: -100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clampToRaster(tt.in, 1280, 2000)
			if got != tt.want {
				t.Errorf("clampToRaster(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}
