package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string
	CachePath   string
	BunDebug    bool

	// Control API (driven by the UI shell)
	AllowedOrigins []string
	DeviceToken    string // shared secret between shell and agent

	// CRM backend
	BackendBaseURL string
	BearerToken    string
	RequestTimeout time.Duration

	// Device bridge (GPS + camera exposed by the shell)
	BridgeBaseURL string
	FixTimeout    time.Duration

	// Target search
	SearchDebounce time.Duration
	SearchPerPage  int

	// Capture pipeline
	CaptureDir     string
	CaptureMaxW    int
	CaptureQuality int
	SettleDelay    time.Duration
}

// Load loads environment variables and returns a Config struct
func Load() *Config {
	_ = godotenv.Load()

	debounceMs, _ := strconv.Atoi(getEnv("SEARCH_DEBOUNCE_MS", "400"))
	fixTimeoutSec, _ := strconv.Atoi(getEnv("FIX_TIMEOUT_SECONDS", "20"))
	requestTimeoutSec, _ := strconv.Atoi(getEnv("REQUEST_TIMEOUT_SECONDS", "30"))
	settleMs, _ := strconv.Atoi(getEnv("COMPOSITE_SETTLE_MS", "200"))
	perPage, _ := strconv.Atoi(getEnv("SEARCH_PER_PAGE", "20"))
	maxW, _ := strconv.Atoi(getEnv("CAPTURE_MAX_WIDTH", "640"))
	quality, _ := strconv.Atoi(getEnv("CAPTURE_JPEG_QUALITY", "40"))

	// Parse allowed origins from env (comma-separated)
	allowedOrigins := strings.Split(
		getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		",",
	)

	return &Config{
		Port:        getEnv("APP_PORT", "8790"),
		Environment: getEnv("ENVIRONMENT", "development"),
		CachePath:   getEnv("CACHE_PATH", "visitagent.db"),
		BunDebug:    getEnvAsBool("BUNDEBUG", false),

		AllowedOrigins: allowedOrigins,
		DeviceToken:    getEnv("DEVICE_TOKEN", ""),

		BackendBaseURL: getEnv("BACKEND_BASE_URL", "http://localhost:8780/api/v1"),
		BearerToken:    getEnv("BACKEND_BEARER_TOKEN", ""),
		RequestTimeout: time.Duration(requestTimeoutSec) * time.Second,

		BridgeBaseURL: getEnv("BRIDGE_BASE_URL", "http://localhost:8791"),
		FixTimeout:    time.Duration(fixTimeoutSec) * time.Second,

		SearchDebounce: time.Duration(debounceMs) * time.Millisecond,
		SearchPerPage:  perPage,

		CaptureDir:     getEnv("CAPTURE_DIR", os.TempDir()),
		CaptureMaxW:    maxW,
		CaptureQuality: quality,
		SettleDelay:    time.Duration(settleMs) * time.Millisecond,
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valStr := os.Getenv(key)
	if valStr == "" {
		return fallback
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("invalid bool for %s, defaulting to %v\n", key, fallback)
		return fallback
	}
	return val
}
