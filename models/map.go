package models

// MapRequest is the payload for POST /api/v1/map. It discovers the
// links of a rendered page, typically to feed a batch capture.
type MapRequest struct {
	// URL is the target page to discover links on. Required.
	URL string `json:"url" binding:"required,url"`

	// SameHostOnly keeps only links on the target's host. Default: true.
	SameHostOnly *bool `json:"same_host_only,omitempty"`

	// Timeout is the maximum duration in seconds. Default: 60. Max: 300.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=300"`
}

// Defaults applies default values to unset fields.
func (r *MapRequest) Defaults() {
	if r.SameHostOnly == nil {
		t := true
		r.SameHostOnly = &t
	}
	if r.Timeout == 0 {
		r.Timeout = 60
	}
}

// MapResponse is the response for POST /api/v1/map.
type MapResponse struct {
	Success bool         `json:"success"`
	URLs    []string     `json:"urls"`
	Total   int          `json:"total"`
	Error   *ErrorDetail `json:"error,omitempty"`
}
