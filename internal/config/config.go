package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// SecurityConfig represents security configuration
type SecurityConfig struct {
	EnableRateLimit       bool
	RateLimitPerSecond    float64
	RateLimitBurst        int
	EnableCORS            bool
	AllowedOrigins        []string
	EnableSecurityHeaders bool
	MaxRequestSize        int64
	EnableRequestID       bool
}

type Config struct {
	Port               int
	DataDir            string
	LogLevel           string
	FeedURLs           []string
	ArchiveBaseURL     string
	SectionPathPrefix  string
	ArchiveSourceLabel string
	FetchTimeout       time.Duration
	CacheTTL           time.Duration
	WebhookURL         string
	Security           SecurityConfig
}

func Load() *Config {
	port := getEnvAsInt("PORT", 8080)
	dataDir := getEnv("DATA_DIR", "./data")
	logLevel := getEnv("LOG_LEVEL", "info")
	fetchTimeout := getEnvAsDuration("FETCH_TIMEOUT", 10*time.Second)
	cacheTTL := getEnvAsDuration("CACHE_TTL", 5*time.Minute)
	archiveBaseURL := getEnv("ARCHIVE_BASE_URL", "https://www.goettinger-tageblatt.de")
	sectionPathPrefix := getEnv("SECTION_PATH_PREFIX", "/lokales/goettingen-lk/goettingen/")
	archiveSourceLabel := getEnv("ARCHIVE_SOURCE_LABEL", "GT Archiv")
	webhookURL := getEnv("WEBHOOK_URL", "")

	// Load security configuration
	security := loadSecurityConfig()

	// Load feed URLs from environment variables
	feedURLs := getEnvAsStringSlice("FEED_URLS", nil)

	// If no feeds configured via env, use defaults
	if len(feedURLs) == 0 {
		feedURLs = getDefaultFeedURLs()
	}

	return &Config{
		Port:               port,
		DataDir:            dataDir,
		LogLevel:           logLevel,
		FeedURLs:           feedURLs,
		ArchiveBaseURL:     strings.TrimSuffix(archiveBaseURL, "/"),
		SectionPathPrefix:  sectionPathPrefix,
		ArchiveSourceLabel: archiveSourceLabel,
		FetchTimeout:       fetchTimeout,
		CacheTTL:           cacheTTL,
		WebhookURL:         webhookURL,
		Security:           security,
	}
}

func loadSecurityConfig() SecurityConfig {
	return SecurityConfig{
		EnableRateLimit:       getEnvAsBool("ENABLE_RATE_LIMIT", true),
		RateLimitPerSecond:    getEnvAsFloat("RATE_LIMIT_PER_SECOND", 10.0),
		RateLimitBurst:        getEnvAsInt("RATE_LIMIT_BURST", 20),
		EnableCORS:            getEnvAsBool("ENABLE_CORS", true),
		AllowedOrigins:        getEnvAsStringSlice("ALLOWED_ORIGINS", []string{"*"}),
		EnableSecurityHeaders: getEnvAsBool("ENABLE_SECURITY_HEADERS", true),
		MaxRequestSize:        getEnvAsInt64("MAX_REQUEST_SIZE", 10<<20), // 10MB
		EnableRequestID:       getEnvAsBool("ENABLE_REQUEST_ID", true),
	}
}

func getDefaultFeedURLs() []string {
	return []string{
		"https://www.goettinger-tageblatt.de/arc/outboundfeeds/rss/category/goettingen/",
		"https://www.goettinger-tageblatt.de/arc/outboundfeeds/rss/category/goettingen-lk/",
	}
}

func getEnv(key string, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if floatVal, err := strconv.ParseFloat(val, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		items := strings.Split(val, ",")
		result := make([]string, 0, len(items))
		for _, item := range items {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultVal
}
