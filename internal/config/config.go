// Package config loads the daemon configuration from environment variables,
// applies defaults, normalizes values and validates the result. A Config is
// immutable once Load returns.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// DefaultFollowedUsers is the tracked account set when FOLLOWED_USERS is unset.
var DefaultFollowedUsers = []string{
	"JLMelenchon", "MarCharlott", "benoithamon", "yjadot",
	"EmmanuelMacron", "FrancoisFillon", "MLP_officiel", "f_philippot",
}

// Cursor backends.
const (
	CursorMemory = "memory"
	CursorRedis  = "redis"
)

// Batch policies, mirrored by pipeline.Policy.
const (
	BatchFailFast = "fail_fast"
	BatchPartial  = "partial"
)

// TwitterConfig configures the timeline source.
type TwitterConfig struct {
	BearerToken   string
	TimelineURL   string
	TimelineCount int // 1..200
}

// WoleetConfig configures the anchoring service.
type WoleetConfig struct {
	BearerToken string
	Server      string
	RPS         float64 // anchor creations per second; 0 disables throttling
	Burst       int
}

// KintoConfig configures the record store.
type KintoConfig struct {
	Server   string // trailing "/" trimmed
	Auth     string // user:password
	Bucket   string
	MaxBatch int
}

// PipelineConfig tunes scheduling and concurrency.
type PipelineConfig struct {
	Accounts          []string
	PollInterval      time.Duration
	RequestTimeout    time.Duration
	CycleTimeout      time.Duration
	MaxParallel       int // 0 = one worker per account
	AnchorConcurrency int
	BatchPolicy       string
}

// CursorConfig selects where per-account cursors live.
type CursorConfig struct {
	Backend  string
	RedisURL string
}

// AdminConfig configures the operational HTTP surface.
type AdminConfig struct {
	Enabled           bool
	Port              string
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	GinMode           string // debug|release|test
	APIBasePath       string
	SwaggerEnabled    bool
	RateRPS           float64
	RateBurst         int
	AllowedOrigins    []string
}

// OTELConfig defines OpenTelemetry settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds every setting of the daemon.
type Config struct {
	Twitter  TwitterConfig
	Woleet   WoleetConfig
	Kinto    KintoConfig
	Pipeline PipelineConfig
	Cursor   CursorConfig
	Admin    AdminConfig

	DBPath    string // empty disables the anchor ledger and cycle journal
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool

	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	accounts, err := AccountsFromCSV(getenv("FOLLOWED_USERS", strings.Join(DefaultFollowedUsers, ",")))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Twitter: TwitterConfig{
			BearerToken:   strings.TrimSpace(os.Getenv("TWITTER_BEARER_TOKEN")),
			TimelineURL:   getenv("TWITTER_TIMELINE_URL", "https://api.twitter.com/1.1/statuses/user_timeline.json"),
			TimelineCount: getint("TIMELINE_COUNT", 20),
		},
		Woleet: WoleetConfig{
			BearerToken: strings.TrimSpace(os.Getenv("WOLEET_BEARER_TOKEN")),
			Server:      strings.TrimRight(getenv("WOLEET_SERVER", "https://api.woleet.io/v1"), "/"),
			RPS:         getfloat("ANCHOR_RPS", 5),
			Burst:       getint("ANCHOR_BURST", 5),
		},
		Kinto: KintoConfig{
			Server:   strings.TrimRight(getenv("KINTO_SERVER", "https://kinto.dev.mozaws.net/v1"), "/"),
			Auth:     getenv("KINTO_AUTH", "user:pass"),
			Bucket:   getenv("BUCKET_ID", "tweet_blockchain_anchoring"),
			MaxBatch: getint("BATCH_MAX_REQUESTS", 25),
		},
		Pipeline: PipelineConfig{
			Accounts:          accounts,
			PollInterval:      time.Duration(getint("POLL_INTERVAL_SECONDS", 10)) * time.Second,
			RequestTimeout:    getdur("REQUEST_TIMEOUT", 30*time.Second),
			CycleTimeout:      getdur("CYCLE_TIMEOUT", 5*time.Minute),
			MaxParallel:       getint("MAX_PARALLEL_ACCOUNTS", 0),
			AnchorConcurrency: getint("ANCHOR_CONCURRENCY", 4),
			BatchPolicy:       strings.ToLower(getenv("BATCH_POLICY", BatchFailFast)),
		},
		Cursor: CursorConfig{
			Backend:  strings.ToLower(getenv("CURSOR_BACKEND", CursorMemory)),
			RedisURL: getenv("REDIS_URL", "redis://localhost:6379/0"),
		},
		Admin: AdminConfig{
			Enabled:           getbool("ADMIN_ENABLED", true),
			Port:              getenv("PORT", "8080"),
			ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
			IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
			GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),
			APIBasePath:       normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),
			SwaggerEnabled:    getbool("SWAGGER_ENABLED", false),
			RateRPS:           getfloat("ADMIN_RATE_RPS", 5),
			RateBurst:         getint("ADMIN_RATE_BURST", 10),
			AllowedOrigins:    splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		DBPath:    lookupenv("DB_PATH", "anchord.db"),
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "anchord"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.Admin.GinMode {
	case "debug", "release", "test":
	default:
		cfg.Admin.GinMode = "release"
	}

	return cfg, cfg.Validate()
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if c.Twitter.BearerToken == "" {
		return errors.New("TWITTER_BEARER_TOKEN must be set")
	}
	if c.Woleet.BearerToken == "" {
		return errors.New("WOLEET_BEARER_TOKEN must be set")
	}
	if c.Twitter.TimelineCount < 1 || c.Twitter.TimelineCount > 200 {
		return errors.New("TIMELINE_COUNT must be in [1,200]")
	}
	if user, _, ok := strings.Cut(c.Kinto.Auth, ":"); !ok || user == "" {
		return errors.New("KINTO_AUTH must be user:password")
	}
	if strings.TrimSpace(c.Kinto.Bucket) == "" {
		return errors.New("BUCKET_ID must not be empty")
	}
	if c.Kinto.MaxBatch < 1 {
		return errors.New("BATCH_MAX_REQUESTS must be >= 1")
	}
	if len(c.Pipeline.Accounts) == 0 {
		return errors.New("FOLLOWED_USERS must name at least one account")
	}
	if c.Pipeline.PollInterval <= 0 {
		return errors.New("POLL_INTERVAL_SECONDS must be > 0")
	}
	if c.Pipeline.RequestTimeout <= 0 || c.Pipeline.CycleTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT and CYCLE_TIMEOUT must be positive durations")
	}
	if c.Pipeline.MaxParallel < 0 {
		return errors.New("MAX_PARALLEL_ACCOUNTS must be >= 0")
	}
	if c.Pipeline.AnchorConcurrency < 1 {
		return errors.New("ANCHOR_CONCURRENCY must be >= 1")
	}
	switch c.Pipeline.BatchPolicy {
	case BatchFailFast, BatchPartial:
	default:
		return fmt.Errorf("BATCH_POLICY must be %s or %s", BatchFailFast, BatchPartial)
	}
	if c.Woleet.RPS < 0 || c.Woleet.Burst < 1 {
		return errors.New("ANCHOR_RPS must be >= 0 and ANCHOR_BURST >= 1")
	}
	switch c.Cursor.Backend {
	case CursorMemory:
	case CursorRedis:
		if strings.TrimSpace(c.Cursor.RedisURL) == "" {
			return errors.New("REDIS_URL must be set when CURSOR_BACKEND=redis")
		}
	default:
		return fmt.Errorf("CURSOR_BACKEND must be %s or %s", CursorMemory, CursorRedis)
	}
	if c.Admin.Enabled {
		if strings.TrimSpace(c.Admin.Port) == "" {
			return errors.New("PORT must not be empty")
		}
		if c.Admin.ReadHeaderTimeout <= 0 || c.Admin.IdleTimeout <= 0 {
			return errors.New("admin timeouts must be positive durations")
		}
		if c.Admin.RateRPS < 0 {
			return errors.New("ADMIN_RATE_RPS must be >= 0")
		}
		if c.Admin.RateBurst < 1 {
			return errors.New("ADMIN_RATE_BURST must be >= 1")
		}
	}
	if c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

// AccountsFromCSV parses a comma-separated account list. Blank entries are
// dropped; a name repeated under different case is rejected, since the
// timeline source treats screen names case-insensitively.
func AccountsFromCSV(s string) ([]string, error) {
	fold := cases.Fold()
	seen := make(map[string]string)
	var out []string
	for _, a := range splitCSV(s) {
		key := fold.String(a)
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("FOLLOWED_USERS lists %q and %q, which name the same account", prev, a)
		}
		seen[key] = a
		out = append(out, a)
	}
	return out, nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

// lookupenv is getenv except that an explicitly empty value is kept.
func lookupenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures a leading '/' and strips a trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
