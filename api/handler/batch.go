package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/faiz-00/screenshot/analyzer"
	"github.com/faiz-00/screenshot/models"
)

// defaultBatchConcurrency applies when a batch request sets none.
const defaultBatchConcurrency = 2

// batchStore holds all in-flight and completed batch jobs.
var batchStore sync.Map

func init() {
	// Expire batch jobs older than 1 hour.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-1 * time.Hour).Unix()
			batchStore.Range(func(key, value any) bool {
				job := value.(*models.BatchJob)
				if job.CreatedAt < cutoff {
					batchStore.Delete(key)
				}
				return true
			})
		}
	}()
}

// PostBatch returns a handler for POST /api/v1/batch/analyze.
// It registers a batch job and runs the captures in the background;
// maxConcurrent is the browser pool size and caps the fan-out.
func PostBatch(a *analyzer.Analyzer, maxConcurrent int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		jobID := "batch-" + randomID()
		job := &models.BatchJob{
			ID:        jobID,
			Status:    "processing",
			Total:     len(req.URLs),
			Results:   make([]*models.AnalyzeResponse, len(req.URLs)),
			CreatedAt: time.Now().Unix(),
		}
		batchStore.Store(jobID, job)

		go runBatch(a, job, req, maxConcurrent)

		c.JSON(http.StatusOK, models.BatchResponse{
			ID:     jobID,
			Status: "processing",
			Total:  len(req.URLs),
		})
	}
}

// GetBatch returns a handler for GET /api/v1/batch/:id.
func GetBatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		val, ok := batchStore.Load(jobID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeNotFound,
					Message: "batch job not found",
				},
			})
			return
		}

		job := val.(*models.BatchJob)
		c.JSON(http.StatusOK, models.BatchStatusResponse{
			ID:        job.ID,
			Status:    job.Status,
			Completed: job.Completed,
			Total:     job.Total,
			Results:   job.Results,
		})
	}
}

// runBatch captures every URL with bounded concurrency. The semaphore
// stays below the page pool so a batch cannot starve single requests.
func runBatch(a *analyzer.Analyzer, job *models.BatchJob, req models.BatchRequest, maxConcurrent int) {
	sem := make(chan struct{}, batchConcurrency(req.Concurrency, maxConcurrent))

	var wg sync.WaitGroup
	var completed, failed atomic.Int32

	for i, rawURL := range req.URLs {
		wg.Add(1)
		go func(idx int, targetURL string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			resp, err := a.Analyze(context.Background(), req.Options.ToAnalyzeRequest(targetURL))
			if err != nil {
				captureErr, ok := err.(*models.CaptureError)
				if !ok {
					captureErr = models.NewCaptureError(models.ErrCodeInternal, err.Error(), err)
				}
				resp = &models.AnalyzeResponse{
					Success: false,
					URL:     targetURL,
					Error:   captureErr.ToDetail(),
				}
			}
			job.Results[idx] = resp

			if resp.Success {
				completed.Add(1)
			} else {
				failed.Add(1)
			}
			job.Completed = int(completed.Load() + failed.Load())
		}(i, rawURL)
	}

	wg.Wait()

	failedCount := int(failed.Load())
	completedCount := int(completed.Load())

	switch {
	case failedCount == job.Total:
		job.Status = "failed"
	case failedCount > 0:
		job.Status = "partial"
	default:
		job.Status = "completed"
	}
	job.Completed = completedCount + failedCount

	slog.Info("batch job finished",
		"id", job.ID,
		"status", job.Status,
		"completed", completedCount,
		"failed", failedCount,
		"total", job.Total,
	)
}

// batchConcurrency resolves the fan-out width: the requested value,
// defaulted when unset, never above the page pool size.
func batchConcurrency(requested, maxConcurrent int) int {
	c := requested
	if c <= 0 {
		c = defaultBatchConcurrency
	}
	if maxConcurrent > 0 && c > maxConcurrent {
		c = maxConcurrent
	}
	return c
}

// randomID generates a short random hex string for job IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
