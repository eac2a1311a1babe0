//go:build !ocr

package ocr

import "errors"

// Enabled reports whether this build can recognize text. Default builds
// ship without the Tesseract dependency.
func Enabled() bool { return false }

var errDisabled = errors.New("ocr: not compiled in (build with -tags ocr)")

// Reader is a stub in builds without the ocr tag.
type Reader struct{}

// NewReader always fails in builds without the ocr tag. Callers check
// Enabled before constructing one.
func NewReader(languages []string) (*Reader, error) {
	return nil, errDisabled
}

func (r *Reader) Recognize(png []byte) (string, error) {
	return "", errDisabled
}

func (r *Reader) Close() error { return nil }
