package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Capture   CaptureConfig
	Scroll    ScrollConfig
	Output    OutputConfig
	Store     StoreConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Preflight PreflightConfig
	Webhook   WebhookConfig
	OCR       OCRConfig
	LLM       LLMConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent captures).
	MaxPages int // default: 4

	// MaxPageUses retires a pooled page after this many navigations.
	MaxPageUses int // default: 50

	// MaxPageAge retires a pooled page after this lifetime.
	MaxPageAge time.Duration // default: 30m

	// DefaultProxy is the default proxy URL for all requests.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// CaptureConfig controls page rendering and raster capture.
type CaptureConfig struct {
	// ViewportWidth is the capture width in CSS pixels. The section
	// geometry and every crop are measured against this width.
	ViewportWidth int // default: 1280

	// ViewportHeight is the initial viewport height; the page grows
	// past it while scrolling.
	ViewportHeight int // default: 800

	// DefaultTimeout is the per-run deadline when the request sets none.
	DefaultTimeout time.Duration // default: 60s

	// MaxTimeout is the maximum allowed timeout from the client.
	MaxTimeout time.Duration // default: 300s

	// NavigationTimeout is the max time for navigate + load alone.
	NavigationTimeout time.Duration // default: 15s

	// SettleDelay is the fixed wait after scrolling completes, absorbing
	// lazy-load completions not tied to scroll events.
	SettleDelay time.Duration // default: 2s

	// BlockTrackers blocks analytics/telemetry hosts at the network
	// layer. Visual resources are never blocked.
	BlockTrackers bool // default: true

	// ThumbWidth is the thumbnail width when thumbnails are requested.
	ThumbWidth int // default: 320
}

// ScrollConfig controls the scroll-to-bottom loop that triggers lazy
// content before measurement.
type ScrollConfig struct {
	// Step is the fixed pixel delta advanced per tick.
	Step int // default: 600

	// Interval is the fixed time between scroll ticks.
	Interval time.Duration // default: 200ms

	// MaxDuration stops the loop even if the page keeps growing.
	MaxDuration time.Duration // default: 45s

	// MaxDistance caps the total scrolled distance in pixels.
	MaxDistance int // default: 60000
}

// OutputConfig controls where run artifacts are written.
type OutputConfig struct {
	// Root is the directory that holds one subdirectory per run.
	Root string // default: "captures"
}

// StoreConfig controls the run-history database.
type StoreConfig struct {
	// Path is the SQLite database file. Empty disables history.
	Path string // default: "screenshot.db"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys (for MVP; replace with DB later).
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// CacheConfig controls the analyze response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 500

	// TTL is how long a cached analysis stays valid.
	TTL time.Duration // default: 10m
}

// PreflightConfig controls the transport-level reachability probe that
// runs before a browser page is consumed.
type PreflightConfig struct {
	// Enabled toggles the probe.
	Enabled bool // default: true

	// Timeout is the probe deadline.
	Timeout time.Duration // default: 5s

	// FailureTTL is how long a hard-failed host is remembered and
	// short-circuited.
	FailureTTL time.Duration // default: 30s
}

// WebhookConfig controls run-completed notifications.
type WebhookConfig struct {
	// URL receives a POST per finished run. Empty disables webhooks.
	URL string

	// Secret signs payloads with HMAC-SHA256 when set.
	Secret string

	// Timeout is the per-delivery deadline.
	Timeout time.Duration // default: 10s

	// MaxAttempts is the delivery attempt count.
	MaxAttempts int // default: 3
}

// OCRConfig controls optional per-crop text recognition.
type OCRConfig struct {
	// Languages is the tesseract language list.
	Languages []string // default: ["eng"]
}

// LLMConfig controls the section-describe client. It is configured
// independently of capture and only the describe endpoint uses it.
type LLMConfig struct {
	// BaseURL is an OpenAI-compatible API root.
	BaseURL string // default: "https://api.openai.com/v1"

	// APIKey enables the describe endpoint when set.
	APIKey string

	// Model is the vision-capable model name.
	Model string // default: "gpt-4o-mini"

	// Timeout is the per-call deadline.
	Timeout time.Duration // default: 60s

	// MaxTokens bounds the generated description length.
	MaxTokens int // default: 300
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("SCREENSHOT_HOST", "0.0.0.0"),
			Port: envIntOr("SCREENSHOT_PORT", 8080),
			Mode: envOr("SCREENSHOT_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("SCREENSHOT_HEADLESS", true),
			MaxPages:     envIntOr("SCREENSHOT_MAX_PAGES", 4),
			MaxPageUses:  envIntOr("SCREENSHOT_MAX_PAGE_USES", 50),
			MaxPageAge:   envDurationOr("SCREENSHOT_MAX_PAGE_AGE", 30*time.Minute),
			DefaultProxy: os.Getenv("SCREENSHOT_PROXY"),
			NoSandbox:    envBoolOr("SCREENSHOT_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("SCREENSHOT_BROWSER_BIN"),
		},
		Capture: CaptureConfig{
			ViewportWidth:     envIntOr("SCREENSHOT_VIEWPORT_WIDTH", 1280),
			ViewportHeight:    envIntOr("SCREENSHOT_VIEWPORT_HEIGHT", 800),
			DefaultTimeout:    envDurationOr("SCREENSHOT_DEFAULT_TIMEOUT", 60*time.Second),
			MaxTimeout:        envDurationOr("SCREENSHOT_MAX_TIMEOUT", 300*time.Second),
			NavigationTimeout: envDurationOr("SCREENSHOT_NAV_TIMEOUT", 15*time.Second),
			SettleDelay:       envDurationOr("SCREENSHOT_SETTLE_DELAY", 2*time.Second),
			BlockTrackers:     envBoolOr("SCREENSHOT_BLOCK_TRACKERS", true),
			ThumbWidth:        envIntOr("SCREENSHOT_THUMB_WIDTH", 320),
		},
		Scroll: ScrollConfig{
			Step:        envIntOr("SCREENSHOT_SCROLL_STEP", 600),
			Interval:    envDurationOr("SCREENSHOT_SCROLL_INTERVAL", 200*time.Millisecond),
			MaxDuration: envDurationOr("SCREENSHOT_SCROLL_MAX_DURATION", 45*time.Second),
			MaxDistance: envIntOr("SCREENSHOT_SCROLL_MAX_DISTANCE", 60000),
		},
		Output: OutputConfig{
			Root: envOr("SCREENSHOT_OUTPUT_DIR", "captures"),
		},
		Store: StoreConfig{
			Path: envOr("SCREENSHOT_DB", "screenshot.db"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SCREENSHOT_AUTH_ENABLED", true),
			APIKeys: envSliceOr("SCREENSHOT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SCREENSHOT_RATE_RPS", 5.0),
			Burst:             envIntOr("SCREENSHOT_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("SCREENSHOT_CACHE_MAX_ENTRIES", 500),
			TTL:        envDurationOr("SCREENSHOT_CACHE_TTL", 10*time.Minute),
		},
		Preflight: PreflightConfig{
			Enabled:    envBoolOr("SCREENSHOT_PREFLIGHT_ENABLED", true),
			Timeout:    envDurationOr("SCREENSHOT_PREFLIGHT_TIMEOUT", 5*time.Second),
			FailureTTL: envDurationOr("SCREENSHOT_PREFLIGHT_FAILURE_TTL", 30*time.Second),
		},
		Webhook: WebhookConfig{
			URL:         os.Getenv("SCREENSHOT_WEBHOOK_URL"),
			Secret:      os.Getenv("SCREENSHOT_WEBHOOK_SECRET"),
			Timeout:     envDurationOr("SCREENSHOT_WEBHOOK_TIMEOUT", 10*time.Second),
			MaxAttempts: envIntOr("SCREENSHOT_WEBHOOK_ATTEMPTS", 3),
		},
		OCR: OCRConfig{
			Languages: envSliceOr("SCREENSHOT_OCR_LANGUAGES", []string{"eng"}),
		},
		LLM: LLMConfig{
			BaseURL:   envOr("SCREENSHOT_LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:    os.Getenv("SCREENSHOT_LLM_API_KEY"),
			Model:     envOr("SCREENSHOT_LLM_MODEL", "gpt-4o-mini"),
			Timeout:   envDurationOr("SCREENSHOT_LLM_TIMEOUT", 60*time.Second),
			MaxTokens: envIntOr("SCREENSHOT_LLM_MAX_TOKENS", 300),
		},
		Log: LogConfig{
			Level:  envOr("SCREENSHOT_LOG_LEVEL", "info"),
			Format: envOr("SCREENSHOT_LOG_FORMAT", "json"),
		},
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Browser.MaxPages < 1 {
		return fmt.Errorf("browser pool needs at least one page, got %d", c.Browser.MaxPages)
	}
	if c.Capture.ViewportWidth < 1 || c.Capture.ViewportHeight < 1 {
		return fmt.Errorf("invalid viewport %dx%d", c.Capture.ViewportWidth, c.Capture.ViewportHeight)
	}
	if c.Scroll.Step < 1 {
		return fmt.Errorf("scroll step must be positive, got %d", c.Scroll.Step)
	}
	if c.Scroll.Interval <= 0 {
		return fmt.Errorf("scroll interval must be positive, got %s", c.Scroll.Interval)
	}
	if c.Capture.DefaultTimeout > c.Capture.MaxTimeout {
		return fmt.Errorf("default timeout %s exceeds max timeout %s", c.Capture.DefaultTimeout, c.Capture.MaxTimeout)
	}
	return nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
