package models

// BatchRequest is the payload for POST /api/v1/batch/analyze.
type BatchRequest struct {
	// URLs is the list of target pages to capture. Required.
	URLs []string `json:"urls" binding:"required,min=1,max=20"`

	// Options contains shared capture options applied to all URLs.
	Options BatchOptions `json:"options"`

	// Concurrency bounds how many captures run at once. Default: 2.
	// Capped by the browser pool size.
	Concurrency int `json:"concurrency,omitempty" binding:"omitempty,min=1,max=8"`
}

// BatchOptions are the shared capture settings applied to every URL in a batch.
type BatchOptions struct {
	Timeout       int   `json:"timeout,omitempty" binding:"omitempty,min=1,max=300"`
	Stealth       bool  `json:"stealth,omitempty"`
	BlockTrackers *bool `json:"block_trackers,omitempty"`
	Thumbnails    bool  `json:"thumbnails,omitempty"`
	OCR           bool  `json:"ocr,omitempty"`
	PDFReport     bool  `json:"pdf_report,omitempty"`
}

// ToAnalyzeRequest builds the per-URL request for one batch entry.
func (o BatchOptions) ToAnalyzeRequest(url string) *AnalyzeRequest {
	return &AnalyzeRequest{
		URL:           url,
		Timeout:       o.Timeout,
		Stealth:       o.Stealth,
		BlockTrackers: o.BlockTrackers,
		Thumbnails:    o.Thumbnails,
		OCR:           o.OCR,
		PDFReport:     o.PDFReport,
	}
}

// BatchResponse is the immediate response for POST /api/v1/batch/analyze.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchStatusResponse is the response for GET /api/v1/batch/:id.
type BatchStatusResponse struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"`
	Completed int                `json:"completed"`
	Total     int                `json:"total"`
	Results   []*AnalyzeResponse `json:"results,omitempty"`
}

// BatchJob tracks an in-progress batch capture operation.
type BatchJob struct {
	ID        string
	Status    string // "processing", "completed", "failed", "partial"
	Total     int
	Completed int
	Results   []*AnalyzeResponse
	CreatedAt int64 // unix timestamp
}
