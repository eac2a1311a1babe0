package handler

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/faiz-00/screenshot/config"
	"github.com/faiz-00/screenshot/llm"
	"github.com/faiz-00/screenshot/models"
	"github.com/faiz-00/screenshot/output"
	"github.com/faiz-00/screenshot/store"
)

// Describe returns a handler for POST /api/v1/describe.
//
// It captions stored crops of a finished run with a vision model. The
// run history supplies the crop list when available; otherwise the run
// directory is globbed directly so describe works without a database.
func Describe(client *llm.Client, ws *output.Workspace, db *store.Store, cfg config.LLMConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.DescribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			describeError(c, models.NewCaptureError(models.ErrCodeInvalidInput, err.Error(), err), req.Namespace)
			return
		}

		params := llm.DescribeParams{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			Prompt:    req.Prompt,
			MaxTokens: cfg.MaxTokens,
		}
		if req.LLMAPIKey != "" {
			params.APIKey = req.LLMAPIKey
		}
		if req.LLMModel != "" {
			params.Model = req.LLMModel
		}
		if req.LLMBaseURL != "" {
			params.BaseURL = req.LLMBaseURL
		}
		if params.APIKey == "" {
			describeError(c, models.NewCaptureError(models.ErrCodeLLMDisabled,
				"no vision API key configured; set SCREENSHOT_LLM_API_KEY or pass llm_api_key", nil), req.Namespace)
			return
		}

		runDir, err := ws.ResolveRun(req.Namespace)
		if err != nil {
			describeError(c, models.NewCaptureError(models.ErrCodeNotFound, "run not found", err), req.Namespace)
			return
		}

		files, err := cropFiles(c, db, runDir, req.Namespace)
		if err != nil {
			describeError(c, err, req.Namespace)
			return
		}
		if req.Index > 0 {
			if req.Index > len(files) {
				describeError(c, models.NewCaptureError(models.ErrCodeNotFound,
					fmt.Sprintf("run has %d crops, index %d out of range", len(files), req.Index), nil), req.Namespace)
				return
			}
			files = files[req.Index-1 : req.Index]
		}

		resp := models.DescribeResponse{
			Success:   true,
			Namespace: req.Namespace,
			LLMUsage:  &models.LLMUsage{},
		}
		for i, file := range files {
			png, rerr := os.ReadFile(filepath.Join(runDir, file))
			if rerr != nil {
				describeError(c, models.NewCaptureError(models.ErrCodeNotFound, "crop file missing: "+file, rerr), req.Namespace)
				return
			}
			result, derr := client.Describe(c.Request.Context(), png, params)
			if derr != nil {
				describeError(c, derr, req.Namespace)
				return
			}
			index := i + 1
			if req.Index > 0 {
				index = req.Index
			}
			resp.Descriptions = append(resp.Descriptions, models.SectionDescription{
				Index:       index,
				File:        file,
				Description: result.Description,
			})
			if result.Usage != nil {
				resp.LLMUsage.PromptTokens += result.Usage.PromptTokens
				resp.LLMUsage.CompletionTokens += result.Usage.CompletionTokens
				resp.LLMUsage.TotalTokens += result.Usage.TotalTokens
			}
		}

		c.JSON(http.StatusOK, resp)
	}
}

// cropFiles lists a run's crop filenames in section order, preferring
// the history record over a directory glob.
func cropFiles(c *gin.Context, db *store.Store, runDir, namespace string) ([]string, error) {
	if db != nil {
		run, err := db.GetRun(c.Request.Context(), namespace)
		if err == nil {
			files := make([]string, 0, len(run.Crops))
			for _, crop := range run.Crops {
				files = append(files, crop.File)
			}
			return files, nil
		}
		// Fall through on ErrNotFound: the run may predate the database.
	}

	matches, err := filepath.Glob(filepath.Join(runDir, "section_*.png"))
	if err != nil {
		return nil, models.NewCaptureError(models.ErrCodeInternal, "failed to list crops", err)
	}
	files := make([]string, 0, len(matches))
	for _, m := range matches {
		name := filepath.Base(m)
		// Thumbnails share the prefix; crop files are section_<n>.png.
		if len(name) > 10 && name[len(name)-10:] == "_thumb.png" {
			continue
		}
		files = append(files, name)
	}
	// Glob order is lexical; sort by the numeric index instead.
	sort.Slice(files, func(i, j int) bool {
		return cropIndex(files[i]) < cropIndex(files[j])
	})
	return files, nil
}

// cropIndex parses the 1-based number out of section_<n>.png.
func cropIndex(name string) int {
	var n int
	fmt.Sscanf(name, "section_%d.png", &n)
	return n
}

// describeError writes a structured describe failure.
func describeError(c *gin.Context, err error, namespace string) {
	captureErr, ok := err.(*models.CaptureError)
	if !ok {
		captureErr = models.NewCaptureError(models.ErrCodeInternal, err.Error(), err)
	}
	c.JSON(mapErrorToStatus(captureErr), models.DescribeResponse{
		Success:   false,
		Namespace: namespace,
		Error:     captureErr.ToDetail(),
	})
}
