package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"payment-tracker/internal/auth"
	"payment-tracker/internal/log"
	"payment-tracker/internal/models"
)

type Config struct {
	// HTTP Server
	Port         string
	SecureCookie bool
	CORSOrigins  []string

	// Peers whose X-Forwarded-For header names the real client.
	TrustedProxies []string

	// Database
	DBPath         string
	SeedCategories bool

	// Initial administrator, created on startup when no user has that login.
	AdminUser     string
	AdminPassword string
	AdminFullName string

	// Authentication
	SessionDuration time.Duration
	LoginLockout    time.Duration

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		SecureCookie: getEnvBool("SECURE_COOKIE", false),
		CORSOrigins:  getEnvList("CORS_ORIGINS"),

		TrustedProxies: getEnvList("TRUSTED_PROXIES"),

		DBPath:         getEnv("DB_PATH", "payments.db"),
		SeedCategories: getEnvBool("SEED_CATEGORIES", true),

		AdminUser:     getEnv("ADMIN_USER", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminFullName: getEnv("ADMIN_FULL_NAME", "Administrator"),

		SessionDuration: getEnvDuration("SESSION_DURATION", 30*24*time.Hour),
		LoginLockout:    getEnvDuration("LOGIN_LOCKOUT", 15*time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if strings.TrimSpace(c.DBPath) == "" {
		errors = append(errors, "database path cannot be empty")
	}

	if c.AdminUser != "" {
		if err := models.ValidateLogin(c.AdminUser); err != nil {
			errors = append(errors, fmt.Sprintf("invalid ADMIN_USER: %v", err))
		}
		if err := auth.ValidatePassword(c.AdminPassword); err != nil {
			errors = append(errors, fmt.Sprintf("invalid ADMIN_PASSWORD: %v", err))
		}
		if strings.TrimSpace(c.AdminFullName) == "" {
			errors = append(errors, "ADMIN_FULL_NAME cannot be empty when ADMIN_USER is set")
		}
	} else if c.AdminPassword != "" {
		errors = append(errors, "ADMIN_PASSWORD is set but ADMIN_USER is empty")
	}

	if c.SessionDuration < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session duration %v: must be at least 1 minute", c.SessionDuration))
	}
	if c.LoginLockout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid login lockout %v: must be at least 1 second", c.LoginLockout))
	}

	if _, err := log.ParseTrustedProxies(c.TrustedProxies); err != nil {
		errors = append(errors, fmt.Sprintf("invalid TRUSTED_PROXIES: %v", err))
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Level returns the configured slog level, defaulting to info.
func (c *Config) Level() slog.Level {
	l, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be one of debug, info, warn, error", s)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
