package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level      string
    Pretty     bool
    File       string
    MaxSizeMB  int
    MaxBackups int
    MaxAgeDays int
    Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// ViewerConfig defines page rendering and lazy-loading behavior.
type ViewerConfig struct {
    // RenderScale multiplies the 72dpi page size when rasterizing.
    RenderScale float64
    // MinBytes is the minimum source size accepted by the loader.
    MinBytes int64
    // ProximityMargin is the distance (CSS px) before the visible area
    // at which a page becomes eligible for rendering.
    ProximityMargin int
    // Concurrency caps simultaneous outstanding page renders per session.
    Concurrency int
    // PageClass is applied to every rendered page surface.
    PageClass string
    // JPEGQuality for encoded page surfaces.
    JPEGQuality int
    // SessionTTL is how long an idle viewing session is kept alive.
    SessionTTL time.Duration
}

// StoreConfig defines connectivity for the surface cache and status store.
// An empty RedisURL selects the in-process store.
type StoreConfig struct {
    RedisURL   string
    SurfaceTTL time.Duration
}

// S3Config defines defaults for s3:// source references.
type S3Config struct {
    Bucket    string
    Region    string
    AccessKey string
    SecretKey string
}

// Config is the top-level configuration.
type Config struct {
    Logging LoggingConfig
    Axiom   AxiomConfig
    Viewer  ViewerConfig
    Store   StoreConfig
    S3      S3Config
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    // Logging defaults
    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", "logs/pdfviewer.log"),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    // Axiom defaults
    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_pdfviewer",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    // Viewer defaults
    cfg.Viewer = ViewerConfig{
        RenderScale:     parseFloat(getEnv("RENDER_SCALE", "1.5"), 1.5),
        MinBytes:        parseInt64(getEnv("MIN_BYTES", "5120"), 5120),
        ProximityMargin: parseInt(getEnv("PROXIMITY_MARGIN", "600"), 600),
        Concurrency:     parseInt(getEnv("RENDER_CONCURRENCY", "2"), 2),
        PageClass:       getEnv("PAGE_CLASS", "pdf-page-rendered"),
        JPEGQuality:     parseInt(getEnv("JPEG_QUALITY", "85"), 85),
        SessionTTL:      parseDuration(getEnv("SESSION_TTL", "30m"), 30*time.Minute),
    }

    // Store defaults
    cfg.Store = StoreConfig{
        RedisURL:   getEnv("REDIS_URL", ""),
        SurfaceTTL: parseDuration(getEnv("SURFACE_TTL", "1h"), time.Hour),
    }

    // S3 defaults
    cfg.S3 = S3Config{
        Bucket:    getEnv("AWS_S3_BUCKET", ""),
        Region:    getEnv("AWS_REGION", ""),
        AccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
        SecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
    }

    return cfg
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseInt64(s string, def int64) int64 {
    if s == "" { return def }
    if n, err := strconv.ParseInt(s, 10, 64); err == nil { return n }
    return def
}

func parseFloat(s string, def float64) float64 {
    if s == "" { return def }
    if f, err := strconv.ParseFloat(s, 64); err == nil { return f }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}
