package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/faiz-00/screenshot/models"
	"github.com/faiz-00/screenshot/store"
)

// ListRuns returns a handler for GET /api/v1/runs.
// Accepts ?limit=N, newest first, capped at 100.
func ListRuns(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 20
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": models.ErrorDetail{
						Code:    models.ErrCodeInvalidInput,
						Message: "limit must be a positive integer",
					},
				})
				return
			}
			limit = n
		}
		if limit > 100 {
			limit = 100
		}

		runs, err := db.ListRuns(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeStore,
					Message: "failed to list runs",
				},
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{"runs": runs, "total": len(runs)})
	}
}

// GetRun returns a handler for GET /api/v1/runs/:namespace.
// The stored record includes the run's crop rectangles.
func GetRun(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		namespace := c.Param("namespace")

		run, err := db.GetRun(c.Request.Context(), namespace)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{
					"error": models.ErrorDetail{
						Code:    models.ErrCodeNotFound,
						Message: "run not found",
					},
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeStore,
					Message: "failed to load run",
				},
			})
			return
		}

		c.JSON(http.StatusOK, run)
	}
}
