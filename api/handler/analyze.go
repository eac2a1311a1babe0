package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/faiz-00/screenshot/analyzer"
	"github.com/faiz-00/screenshot/models"
)

// Analyze returns a handler for POST /api/v1/analyze.
//
// The handler is a thin shell: parse and validate, hand the request to
// the analyzer, map the outcome to an HTTP status.
func Analyze(a *analyzer.Analyzer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.AnalyzeResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		resp, err := a.Analyze(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// respondError maps a CaptureError to the correct HTTP status code and
// writes a structured JSON error response.
func respondError(c *gin.Context, err error) {
	captureErr, ok := err.(*models.CaptureError)
	if !ok {
		captureErr = models.NewCaptureError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(captureErr), models.AnalyzeResponse{
		Success: false,
		Error:   captureErr.ToDetail(),
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.CaptureError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeBrowserCrash:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeRateLimited, models.ErrCodeLLMRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized, models.ErrCodeLLMAuthFailure:
		return http.StatusUnauthorized // 401
	case models.ErrCodeOCRDisabled, models.ErrCodeLLMDisabled:
		return http.StatusNotImplemented // 501
	default:
		return http.StatusInternalServerError // 500
	}
}
