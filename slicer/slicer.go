// Package slicer turns one full-page raster into bounds-clamped
// per-section crop images.
package slicer

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	"github.com/faiz-00/screenshot/models"
)

// Options control side outputs of a slicing pass.
type Options struct {
	// Thumbnails writes a width-bounded thumbnail next to every crop.
	Thumbnails bool

	// ThumbWidth is the thumbnail width in pixels.
	ThumbWidth int
}

// Result reports what a slicing pass produced.
type Result struct {
	// Crops lists the persisted images in section order; indices are the
	// 1-based crop numbers.
	Crops []models.SectionImage

	// Skipped counts sections whose clamped rectangle was degenerate.
	Skipped int

	// RasterWidth and RasterHeight are the dimensions of the consumed
	// full-page raster.
	RasterWidth  int
	RasterHeight int
}

// Slicer crops sections out of a captured raster. Every crop in a run is
// read from the one persisted raster, never from a fresh capture, so all
// crops share a single temporally atomic state of the page.
type Slicer struct {
	log *slog.Logger
}

// New creates a Slicer.
func New(log *slog.Logger) *Slicer {
	if log == nil {
		log = slog.Default()
	}
	return &Slicer{log: log.With("component", "slicer")}
}

// Slice decodes the raster, produces one crop per non-degenerate section
// into destDir, and deletes the raster unconditionally afterwards, even
// when sections were skipped or an error aborts the pass. A failed
// raster delete is logged and never overturns the result.
func (s *Slicer) Slice(ctx context.Context, rasterPath string, sections []models.Section, destDir string, opts Options) (*Result, error) {
	defer func() {
		if err := os.Remove(rasterPath); err != nil {
			s.log.Warn("raster cleanup failed", "path", rasterPath, "error", err)
		}
	}()

	f, err := os.Open(rasterPath)
	if err != nil {
		return nil, models.NewCaptureError(models.ErrCodeSlice, "failed to open raster", err)
	}
	img, err := png.Decode(f)
	f.Close()
	if err != nil {
		return nil, models.NewCaptureError(models.ErrCodeSlice, "failed to decode raster", err)
	}

	bounds := img.Bounds()
	res := &Result{
		Crops:        make([]models.SectionImage, 0, len(sections)),
		RasterWidth:  bounds.Dx(),
		RasterHeight: bounds.Dy(),
	}

	for _, sec := range sections {
		if err := ctx.Err(); err != nil {
			return nil, models.NewCaptureError(models.ErrCodeTimeout, "slicing interrupted", err)
		}

		rect := clampToRaster(floorRect(sec), res.RasterWidth, res.RasterHeight)
		if rect.Width <= 0 || rect.Height <= 0 {
			res.Skipped++
			s.log.Debug("skipping degenerate section",
				"top", sec.Top, "left", sec.Left,
				"clamped_width", rect.Width, "clamped_height", rect.Height,
			)
			continue
		}

		idx := len(res.Crops) + 1
		file := fmt.Sprintf("section_%d.png", idx)
		sub := cropRegion(img, rect)
		if err := writePNG(sub, filepath.Join(destDir, file)); err != nil {
			return nil, models.NewCaptureError(models.ErrCodeSlice, "failed to persist crop", err)
		}

		ci := models.SectionImage{Index: idx, File: file, Rect: rect}
		if opts.Thumbnails {
			thumb := fmt.Sprintf("section_%d_thumb.png", idx)
			if err := writePNG(scaleToWidth(sub, opts.ThumbWidth), filepath.Join(destDir, thumb)); err != nil {
				return nil, models.NewCaptureError(models.ErrCodeSlice, "failed to persist thumbnail", err)
			}
			ci.ThumbFile = thumb
		}
		res.Crops = append(res.Crops, ci)
	}

	return res, nil
}

// floorRect resolves a section to integer pixel bounds. All coordinates
// are floored; fractional-pixel crops must not occur.
func floorRect(sec models.Section) models.CropRect {
	return models.CropRect{
		Left:   int(math.Floor(sec.Left)),
		Top:    int(math.Floor(sec.Top)),
		Width:  int(math.Floor(sec.Width)),
		Height: int(math.Floor(sec.Height)),
	}
}

// clampToRaster forces the rectangle inside the raster bounds. The
// result can end up with non-positive width or height; callers treat
// that as a degenerate section.
func clampToRaster(r models.CropRect, rasterW, rasterH int) models.CropRect {
	if r.Left < 0 {
		r.Left = 0
	}
	if r.Top < 0 {
		r.Top = 0
	}
	if r.Left+r.Width > rasterW {
		r.Width = rasterW - r.Left
	}
	if r.Top+r.Height > rasterH {
		r.Height = rasterH - r.Top
	}
	return r
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// cropRegion extracts the rectangle from the decoded raster. PNG decodes
// to types with a zero-copy SubImage; the pixel-copy path covers any
// other image type.
func cropRegion(img image.Image, r models.CropRect) image.Image {
	rect := image.Rect(r.Left, r.Top, r.Left+r.Width, r.Top+r.Height)
	if si, ok := img.(subImager); ok {
		return si.SubImage(rect)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}

// scaleToWidth downscales to the target width preserving aspect ratio.
// Crops narrower than the target are returned as they are.
func scaleToWidth(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || b.Dx() <= width {
		return img
	}
	h := int(math.Round(float64(width) * float64(b.Dy()) / float64(b.Dx())))
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

func writePNG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
