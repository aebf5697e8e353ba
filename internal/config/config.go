package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the browser agent.
type Config struct {
	// HTTP server settings
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	// Engine settings
	EngineBackend string // "playwright" or "chromedp"
	Headless      bool

	// Storage settings
	SessionDir  string
	SitesFile   string
	ProxiesFile string

	// Login workflow settings
	LoginPollIntervalMS int
	LoginTimeoutMS      int

	// Notification settings
	NotifyEndpoint string

	// Logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		BindAddr:            getEnvOrDefault("AGENT_BIND_ADDR", "127.0.0.1:8288"),
		PortCandidates:      getEnvListOrDefault("AGENT_PORT_CANDIDATES", []string{"127.0.0.1:8288", "127.0.0.1:8289", "127.0.0.1:8290"}),
		PortAutoFallback:    getEnvBoolOrDefault("AGENT_PORT_AUTO_FALLBACK", true),
		EngineBackend:       strings.ToLower(getEnvOrDefault("AGENT_ENGINE", "playwright")),
		Headless:            getEnvBoolOrDefault("AGENT_HEADLESS", false),
		SessionDir:          getEnvOrDefault("AGENT_SESSION_DIR", "./sessions"),
		SitesFile:           getEnvOrDefault("AGENT_SITES_FILE", "./config/sites.json"),
		ProxiesFile:         getEnvOrDefault("AGENT_PROXIES_FILE", "./config/proxies.json"),
		LoginPollIntervalMS: getEnvIntOrDefault("AGENT_LOGIN_POLL_INTERVAL_MS", 2000),
		LoginTimeoutMS:      getEnvIntOrDefault("AGENT_LOGIN_TIMEOUT_MS", 300000),
		NotifyEndpoint:      getEnvOrDefault("AGENT_NOTIFY_ENDPOINT", ""),
		LogLevel:            strings.ToLower(getEnvOrDefault("AGENT_LOG_LEVEL", "info")),
		LogFile:             getEnvOrDefault("AGENT_LOG_FILE", "logs/agent.log"),
	}
	if cfg.LoginPollIntervalMS < 250 {
		cfg.LoginPollIntervalMS = 250
	}
	if cfg.LoginTimeoutMS < cfg.LoginPollIntervalMS {
		cfg.LoginTimeoutMS = cfg.LoginPollIntervalMS
	}
	return cfg, nil
}

// LoginPollInterval returns the login poll interval as a duration.
func (c *Config) LoginPollInterval() time.Duration {
	return time.Duration(c.LoginPollIntervalMS) * time.Millisecond
}

// LoginTimeout returns the login wait ceiling as a duration.
func (c *Config) LoginTimeout() time.Duration {
	return time.Duration(c.LoginTimeoutMS) * time.Millisecond
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
