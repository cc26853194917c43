package app

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/opsdeck/opsdeck/internal/panel/service"
	"github.com/opsdeck/opsdeck/pkg/jwtx"
)

type Config struct {
	SessionSecret string        // Required: HMAC secret for session tokens
	SessionTTL    time.Duration // Optional: session token lifetime (default: 168h)
	Issuer        string        // Optional: issuer claim for tokens (default: opsdeck-panel)

	BaseURL   string        // Optional: frontend origin for invite links (default: http://localhost:3000)
	InviteTTL time.Duration // Optional: invite validity window (default: 72h)

	AdminEmail    string // Optional: initial admin email (default: admin@opsdeck.local)
	AdminName     string // Optional: initial admin display name (default: Administrator)
	AdminPassword string // Optional: initial admin password (default: generated and logged)

	DatabaseFile string // Optional: path to SQLite database file (default: ./panel.db)
	PepperFile   string // Optional: path to file containing pepper for password hashing (default: ./pepper)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
	InviteRetention      time.Duration // How long expired invites stay queryable (default: 30 days)
}

// ErrMissingSessionSecret makes a missing PANEL_SESSION_SECRET fatal at
// startup. Running with a generated secret would silently invalidate every
// session on restart, so the operator has to pick one.
var ErrMissingSessionSecret = errors.New("PANEL_SESSION_SECRET is required")

func LoadConfig() (Config, error) {
	cfg := Config{
		SessionSecret: os.Getenv("PANEL_SESSION_SECRET"),
		SessionTTL:    getEnvDurationOrDefault("PANEL_SESSION_TTL", jwtx.DefaultSessionTTL),
		Issuer:        getEnvOrDefault("PANEL_ISSUER", "opsdeck-panel"),

		BaseURL:   getEnvOrDefault("PANEL_BASE_URL", "http://localhost:3000"),
		InviteTTL: getEnvDurationOrDefault("PANEL_INVITE_TTL", service.DefaultInviteTTL),

		AdminEmail:    getEnvOrDefault("PANEL_ADMIN_EMAIL", "admin@opsdeck.local"),
		AdminName:     getEnvOrDefault("PANEL_ADMIN_NAME", "Administrator"),
		AdminPassword: os.Getenv("PANEL_ADMIN_PASSWORD"),

		DatabaseFile: getEnvOrDefault("PANEL_DATABASE_FILE", "panel.db"),
		PepperFile:   getEnvOrDefault("PANEL_PEPPER_FILE", "pepper"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		InviteRetention:      getEnvDurationOrDefault("PANEL_INVITE_RETENTION", service.DefaultExpiredInviteRetention),
	}

	if cfg.SessionSecret == "" {
		return Config{}, ErrMissingSessionSecret
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer hours for convenience
	if hours, err := strconv.Atoi(value); err == nil {
		return time.Duration(hours) * time.Hour
	}

	return defaultValue
}
