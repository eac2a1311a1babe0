package models

// Section is one visually distinct rectangular region of the rendered
// page, in absolute document coordinates (top measured from the document
// origin, not the viewport). Coordinates stay fractional until the
// slicer floors them; sections may overlap and are never merged.
type Section struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bottom returns the section's ending y offset.
func (s Section) Bottom() float64 {
	return s.Top + s.Height
}

// CropRect is an integer pixel rectangle guaranteed (after clamping) to
// lie inside the raster bounds.
type CropRect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SectionImage is one persisted crop in an analyze response.
type SectionImage struct {
	// Index is the 1-based crop number; skipped sections consume no number.
	Index int `json:"index"`

	// File is the image filename relative to the run directory.
	File string `json:"file"`

	// ThumbFile is set when thumbnails were requested.
	ThumbFile string `json:"thumb_file,omitempty"`

	// Rect is the clamped pixel rectangle the crop was cut from.
	Rect CropRect `json:"rect"`

	// Text is the recognized text when OCR was requested.
	Text string `json:"text,omitempty"`
}
