// Package report assembles the crops of a finished run into a single
// contact-sheet PDF, one image per page in section order.
package report

import (
	"fmt"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"github.com/faiz-00/screenshot/models"
)

// FileName is the report's name inside the run directory.
const FileName = "report.pdf"

// Build writes the contact sheet for the given crops into runDir and
// returns the report filename relative to the run directory.
func Build(runDir string, crops []models.SectionImage) (string, error) {
	if len(crops) == 0 {
		return "", fmt.Errorf("report: no crops to assemble")
	}

	files := make([]string, 0, len(crops))
	for _, crop := range crops {
		files = append(files, filepath.Join(runDir, crop.File))
	}

	outPath := filepath.Join(runDir, FileName)
	if err := api.ImportImagesFile(files, outPath, pdfcpu.DefaultImportConfig(), nil); err != nil {
		return "", fmt.Errorf("report: assemble pdf: %w", err)
	}
	return FileName, nil
}
