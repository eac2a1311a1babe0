package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/faiz-00/screenshot/analyzer"
	"github.com/faiz-00/screenshot/api/handler"
	"github.com/faiz-00/screenshot/api/middleware"
	"github.com/faiz-00/screenshot/config"
	"github.com/faiz-00/screenshot/llm"
	"github.com/faiz-00/screenshot/output"
	"github.com/faiz-00/screenshot/renderer"
	"github.com/faiz-00/screenshot/store"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(a *analyzer.Analyzer, r *renderer.Renderer, ws *output.Workspace, db *store.Store, llmClient *llm.Client, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	e := gin.New()
	e.Use(gin.Recovery())
	e.Use(gin.Logger())

	v1 := e.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(r, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Analyze
	protected.POST("/analyze", handler.Analyze(a))

	// Batch
	protected.POST("/batch/analyze", handler.PostBatch(a, cfg.Browser.MaxPages))
	protected.GET("/batch/:id", handler.GetBatch())

	// Map
	protected.POST("/map", handler.PostMap(r))

	// Describe (vision captions for stored crops)
	protected.POST("/describe", handler.Describe(llmClient, ws, db, cfg.LLM))

	// Run history
	if db != nil {
		protected.GET("/runs", handler.ListRuns(db))
		protected.GET("/runs/:namespace", handler.GetRun(db))
	}

	// Stored artifacts (crops, thumbnails, markdown, reports).
	protected.Static("/files", cfg.Output.Root)

	return e
}
