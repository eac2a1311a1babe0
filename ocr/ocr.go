//go:build ocr

// Package ocr recognizes text in section crops via the Tesseract engine.
// It is compiled in only with the ocr build tag because gosseract needs
// the Tesseract C libraries at build time. On Ubuntu/Debian:
//
//	apt-get install tesseract-ocr libtesseract-dev
package ocr

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Enabled reports whether this build can recognize text.
func Enabled() bool { return true }

// Reader wraps a Tesseract client. Not safe for concurrent use; the
// caller serializes crops through one Reader per run.
type Reader struct {
	client *gosseract.Client
}

// NewReader creates a Reader recognizing the given languages, joined
// the way Tesseract expects ("eng+fra"). Empty means English.
func NewReader(languages []string) (*Reader, error) {
	client := gosseract.NewClient()
	if len(languages) > 0 {
		if err := client.SetLanguage(strings.Join(languages, "+")); err != nil {
			client.Close()
			return nil, fmt.Errorf("ocr: set languages: %w", err)
		}
	}
	return &Reader{client: client}, nil
}

// Recognize runs OCR over one PNG crop and returns the trimmed text.
func (r *Reader) Recognize(png []byte) (string, error) {
	if err := r.client.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("ocr: set image: %w", err)
	}
	text, err := r.client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: recognize: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Close releases the Tesseract resources.
func (r *Reader) Close() error {
	return r.client.Close()
}
