package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Extract   ExtractConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
	Webhook   WebhookConfig
	Output    OutputConfig
}

// ServerConfig controls the HTTP server used by `pricehist serve`.
type ServerConfig struct {
	Host string // default: "127.0.0.1"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true; HEADLESS=0 (or any falsy string) disables it

	// Proxy is an optional proxy URL for all requests.
	Proxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Stealth injects the go-rod/stealth evasions on every new document.
	Stealth bool // default: true

	// WindowWidth and WindowHeight size the browser window.
	WindowWidth  int // default: 1400
	WindowHeight int // default: 1000

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds drops requests to well-known ad and tracking hosts.
	BlockAds bool // default: true
}

// ExtractConfig controls the per-item extraction pipeline.
type ExtractConfig struct {
	// URLTemplate builds the history URL for a bare symbol. It receives the
	// symbol, the window start and the window end (unix seconds), in that order.
	URLTemplate string

	// LookbackYears is the window length synthesized for bare symbols.
	LookbackYears int // default: 5

	// ItemDelay is the minimum spacing between two items of a batch.
	ItemDelay time.Duration // default: 2s

	// NavigationTimeout bounds page.Navigate for one item.
	NavigationTimeout time.Duration // default: 60s

	// CallTimeout bounds every single browser call (script evaluation, element
	// lookup, click, HTML snapshot) that has no wait of its own.
	CallTimeout time.Duration // default: 15s

	// TableTimeout bounds the wait for any <table> after navigation or reload.
	TableTimeout time.Duration // default: 20s

	// PollInterval is the check interval of every DOM-state wait.
	PollInterval time.Duration // default: 250ms

	// MinCells is the minimum <td> count of a valid price row.
	MinCells int // default: 6

	Consent ConsentConfig
	Range   RangeConfig
	Scroll  ScrollConfig
}

// ConsentConfig controls cookie/consent overlay dismissal.
type ConsentConfig struct {
	// Timeout bounds the wait for a consent button to appear.
	Timeout time.Duration // default: 3s

	// RemoveOverlays strips fixed/sticky overlays when no button was clicked.
	RemoveOverlays bool // default: true
}

// RangeConfig controls maximum-range selection.
type RangeConfig struct {
	// TriggerSelector locates the date-range control by a structural attribute.
	TriggerSelector string

	// StateSelector locates the element under the trigger whose
	// StateAttribute reports the dropdown visibility.
	StateSelector  string
	StateAttribute string // default: "aria-hidden"

	// OptionSelector locates the maximum-range option inside the dropdown.
	OptionSelector string

	ControlTimeout  time.Duration // default: 20s
	OpenTimeout     time.Duration // default: 15s
	OptionTimeout   time.Duration // default: 10s
	CloseTimeout    time.Duration // default: 10s
	ReloadTimeout   time.Duration // default: 30s
	ReloadThreshold int           // default: 1000 rows

	// Attempts is the number of full attempts before degrading.
	Attempts int // default: 3
}

// ScrollConfig controls infinite-scroll convergence.
type ScrollConfig struct {
	MaxLoops int           // default: 50
	Patience int           // default: 3
	Settle   time.Duration // default: 1.5s
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 0.2

	// Burst is the maximum burst size per API key.
	Burst int // default: 2
}

// CacheConfig controls the extraction result cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached results.
	MaxEntries int // default: 500

	// TTL is the hard expiry of a cached result.
	TTL time.Duration // default: 6h
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// WebhookConfig controls batch.completed notifications.
type WebhookConfig struct {
	URL    string
	Secret string
}

// OutputConfig controls the CLI export.
type OutputConfig struct {
	// Format is one of "xlsx", "csv", "json".
	Format string // default: "xlsx"

	// Path is the output file (xlsx/json) or directory (csv). Empty means a
	// timestamped name in the working directory.
	Path string

	// ConfigFile is the tickers file consulted when no args are given.
	ConfigFile string // default: "config.json"
}

// DefaultURLTemplate is the daily history page with an explicit window.
const DefaultURLTemplate = "https://sg.finance.yahoo.com/quote/%s/history?period1=%d&period2=%d&interval=1d&frequency=1d&includeAdjustedClose=true"

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("PRICEHIST_HOST", "127.0.0.1"),
			Port: envIntOr("PRICEHIST_PORT", 8080),
			Mode: envOr("PRICEHIST_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     HeadlessFromEnv(os.Getenv("HEADLESS")),
			Proxy:        os.Getenv("PRICEHIST_PROXY"),
			NoSandbox:    envBoolOr("PRICEHIST_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("PRICEHIST_BROWSER_BIN"),
			Stealth:      envBoolOr("PRICEHIST_STEALTH", true),
			WindowWidth:  envIntOr("PRICEHIST_WINDOW_WIDTH", 1400),
			WindowHeight: envIntOr("PRICEHIST_WINDOW_HEIGHT", 1000),
			BlockedResourceTypes: envSliceOr("PRICEHIST_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			BlockAds: envBoolOr("PRICEHIST_BLOCK_ADS", true),
		},
		Extract: ExtractConfig{
			URLTemplate:       envOr("PRICEHIST_URL_TEMPLATE", DefaultURLTemplate),
			LookbackYears:     envIntOr("PRICEHIST_LOOKBACK_YEARS", 5),
			ItemDelay:         envDurationOr("PRICEHIST_ITEM_DELAY", 2*time.Second),
			NavigationTimeout: envDurationOr("PRICEHIST_NAV_TIMEOUT", 60*time.Second),
			CallTimeout:       envDurationOr("PRICEHIST_CALL_TIMEOUT", 15*time.Second),
			TableTimeout:      envDurationOr("PRICEHIST_TABLE_TIMEOUT", 20*time.Second),
			PollInterval:      envDurationOr("PRICEHIST_POLL_INTERVAL", 250*time.Millisecond),
			MinCells:          envIntOr("PRICEHIST_MIN_CELLS", 6),
			Consent: ConsentConfig{
				Timeout:        envDurationOr("PRICEHIST_CONSENT_TIMEOUT", 3*time.Second),
				RemoveOverlays: envBoolOr("PRICEHIST_REMOVE_OVERLAYS", true),
			},
			Range: RangeConfig{
				TriggerSelector: envOr("PRICEHIST_RANGE_TRIGGER", `button[data-ylk*="slk:date-select"]`),
				StateSelector:   envOr("PRICEHIST_RANGE_STATE", `button[data-ylk*="slk:date-select"] div[aria-hidden]`),
				StateAttribute:  envOr("PRICEHIST_RANGE_STATE_ATTR", "aria-hidden"),
				OptionSelector:  envOr("PRICEHIST_RANGE_OPTION", `button[data-value="5_Y"]`),
				ControlTimeout:  envDurationOr("PRICEHIST_RANGE_CONTROL_TIMEOUT", 20*time.Second),
				OpenTimeout:     envDurationOr("PRICEHIST_RANGE_OPEN_TIMEOUT", 15*time.Second),
				OptionTimeout:   envDurationOr("PRICEHIST_RANGE_OPTION_TIMEOUT", 10*time.Second),
				CloseTimeout:    envDurationOr("PRICEHIST_RANGE_CLOSE_TIMEOUT", 10*time.Second),
				ReloadTimeout:   envDurationOr("PRICEHIST_RANGE_RELOAD_TIMEOUT", 30*time.Second),
				ReloadThreshold: envIntOr("PRICEHIST_RANGE_THRESHOLD", 1000),
				Attempts:        envIntOr("PRICEHIST_RANGE_ATTEMPTS", 3),
			},
			Scroll: ScrollConfig{
				MaxLoops: envIntOr("PRICEHIST_SCROLL_MAX_LOOPS", 50),
				Patience: envIntOr("PRICEHIST_SCROLL_PATIENCE", 3),
				Settle:   envDurationOr("PRICEHIST_SCROLL_SETTLE", 1500*time.Millisecond),
			},
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PRICEHIST_AUTH_ENABLED", true),
			APIKeys: envSliceOr("PRICEHIST_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PRICEHIST_RATE_RPS", 0.2),
			Burst:             envIntOr("PRICEHIST_RATE_BURST", 2),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("PRICEHIST_CACHE_MAX_ENTRIES", 500),
			TTL:        envDurationOr("PRICEHIST_CACHE_TTL", 6*time.Hour),
		},
		Log: LogConfig{
			Level:  envOr("PRICEHIST_LOG_LEVEL", "info"),
			Format: envOr("PRICEHIST_LOG_FORMAT", "text"),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("PRICEHIST_WEBHOOK_URL"),
			Secret: os.Getenv("PRICEHIST_WEBHOOK_SECRET"),
		},
		Output: OutputConfig{
			Format:     envOr("PRICEHIST_OUTPUT_FORMAT", "xlsx"),
			Path:       os.Getenv("PRICEHIST_OUTPUT"),
			ConfigFile: envOr("PRICEHIST_CONFIG_FILE", "config.json"),
		},
	}
}

// HeadlessFromEnv interprets the HEADLESS toggle. Unset keeps the default
// (headless); any falsy string disables headless mode.
func HeadlessFromEnv(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "false", "no", "off", "n", "f":
		return false
	default:
		return true
	}
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
