// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, LINE channel credentials, the backing store, intake rules,
// rate limiting and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on minimal images

	"golang.org/x/text/language"
)

// CORSConfig defines Cross-Origin Resource Sharing settings for the dashboard API.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// LINEConfig holds the Messaging API channel settings.
type LINEConfig struct {
	ChannelSecret      string // LINE_CHANNEL_SECRET
	ChannelAccessToken string // LINE_CHANNEL_ACCESS_TOKEN
	APIEndpoint        string // LINE_API_ENDPOINT, empty means the SDK default
	WebhookPath        string // WEBHOOK_PATH
}

// StoreConfig selects the backing store.
type StoreConfig struct {
	Driver  string // sqlite|postgres
	DSN     string // file path / URI or postgres connection string
	Project string // STORE_PROJECT, informational
	Dataset string // STORE_DATASET, table namespace
}

// IntakeConfig tunes validation, timestamps and replies.
type IntakeConfig struct {
	DashboardBaseURL string
	MinTemperature   float64
	MaxTemperature   float64
	Timezone         string
	Location         *time.Location
	ReplyLocale      language.Tag
	ProfileTimeout   time.Duration
	StoreTimeout     time.Duration
	ReplyTimeout     time.Duration
}

// EventsConfig controls the processed-event ledger.
type EventsConfig struct {
	DedupTTL      time.Duration // EVENT_DEDUP_TTL; 0 disables the ledger
	ClaimLease    time.Duration // EVENT_CLAIM_LEASE; in-flight claim before it can be retaken
	PurgeInterval time.Duration // EVENT_PURGE_INTERVAL
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	MaxBodyBytes      int64         // webhook body cap
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for dashboard routes

	LINE   LINEConfig
	Store  StoreConfig
	Intake IntakeConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	Events EventsConfig

	// Observability
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

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
// Channel credentials are checked separately by LINEConfig.Validate so that
// store-only commands can run without them.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:      int64(getint("MAX_BODY_BYTES", 1<<20)),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		LINE: LINEConfig{
			ChannelSecret:      strings.TrimSpace(getenv("LINE_CHANNEL_SECRET", "")),
			ChannelAccessToken: strings.TrimSpace(getenv("LINE_CHANNEL_ACCESS_TOKEN", "")),
			APIEndpoint:        strings.TrimSpace(getenv("LINE_API_ENDPOINT", "")),
			WebhookPath:        normalizeBasePath(getenv("WEBHOOK_PATH", "/callback")),
		},

		Store: StoreConfig{
			Driver:  strings.ToLower(strings.TrimSpace(getenv("STORE_DRIVER", "sqlite"))),
			DSN:     getenv("STORE_DSN", "bodytemp.db"),
			Project: getenv("STORE_PROJECT", ""),
			Dataset: strings.TrimSpace(getenv("STORE_DATASET", "body_temperature_data")),
		},

		Intake: IntakeConfig{
			DashboardBaseURL: strings.TrimSpace(getenv("DASHBOARD_BASE_URL", "")),
			MinTemperature:   getfloat("MIN_TEMPERATURE", 35.0),
			MaxTemperature:   getfloat("MAX_TEMPERATURE", 42.0),
			Timezone:         getenv("TIMEZONE", "Asia/Tokyo"),
			ProfileTimeout:   getdur("PROFILE_TIMEOUT", 5*time.Second),
			StoreTimeout:     getdur("STORE_TIMEOUT", 10*time.Second),
			ReplyTimeout:     getdur("REPLY_TIMEOUT", 5*time.Second),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 20.0),
		RateBurst: getint("RATE_BURST", 40),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		Events: EventsConfig{
			DedupTTL:      getdur("EVENT_DEDUP_TTL", 24*time.Hour),
			ClaimLease:    getdur("EVENT_CLAIM_LEASE", 2*time.Minute),
			PurgeInterval: getdur("EVENT_PURGE_INTERVAL", time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "bodytemp-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Store.Driver == "postgresql" {
		cfg.Store.Driver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		return cfg, errors.New("MAX_BODY_BYTES must be > 0")
	}
	if cfg.LINE.WebhookPath == "/" {
		return cfg, errors.New("WEBHOOK_PATH must not be the root path")
	}
	switch cfg.Store.Driver {
	case "sqlite", "postgres":
	default:
		return cfg, errors.New("STORE_DRIVER must be one of: sqlite, postgres")
	}
	if strings.TrimSpace(cfg.Store.DSN) == "" {
		return cfg, errors.New("STORE_DSN must not be empty")
	}
	if !validIdent(cfg.Store.Dataset) {
		return cfg, errors.New("STORE_DATASET must contain only letters, digits and underscores")
	}
	if cfg.Intake.MinTemperature >= cfg.Intake.MaxTemperature {
		return cfg, errors.New("MIN_TEMPERATURE must be below MAX_TEMPERATURE")
	}
	loc, err := time.LoadLocation(cfg.Intake.Timezone)
	if err != nil {
		return cfg, fmt.Errorf("TIMEZONE: %w", err)
	}
	cfg.Intake.Location = loc
	tag, err := parseLocale(getenv("REPLY_LOCALE", "ja"))
	if err != nil {
		return cfg, err
	}
	cfg.Intake.ReplyLocale = tag
	if cfg.Intake.ProfileTimeout <= 0 || cfg.Intake.StoreTimeout <= 0 || cfg.Intake.ReplyTimeout <= 0 {
		return cfg, errors.New("PROFILE_TIMEOUT, STORE_TIMEOUT and REPLY_TIMEOUT must be positive")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.Events.DedupTTL < 0 {
		return cfg, errors.New("EVENT_DEDUP_TTL must be >= 0")
	}
	if cfg.Events.ClaimLease <= 0 {
		return cfg, errors.New("EVENT_CLAIM_LEASE must be > 0")
	}
	if cfg.Events.PurgeInterval <= 0 {
		return cfg, errors.New("EVENT_PURGE_INTERVAL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// Validate reports missing channel credentials.
func (c LINEConfig) Validate() error {
	if c.ChannelSecret == "" {
		return errors.New("LINE_CHANNEL_SECRET must not be empty")
	}
	if c.ChannelAccessToken == "" {
		return errors.New("LINE_CHANNEL_ACCESS_TOKEN must not be empty")
	}
	return nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
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

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
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
	if p == "" {
		return "/"
	}
	return p
}

// parseLocale accepts the reply languages the bot ships text for.
func parseLocale(s string) (language.Tag, error) {
	tag, err := language.Parse(strings.TrimSpace(s))
	if err != nil {
		return language.Und, fmt.Errorf("REPLY_LOCALE: %w", err)
	}
	base, _ := tag.Base()
	switch base.String() {
	case "ja":
		return language.Japanese, nil
	case "en":
		return language.English, nil
	default:
		return language.Und, errors.New("REPLY_LOCALE must be one of: ja, en")
	}
}

// validIdent reports whether s is a non-empty SQL identifier made of
// letters, digits and underscores.
func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
