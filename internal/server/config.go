package server

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig defines the per-session sliding-window message policy:
// at most MaxMessages chat messages within any trailing Window.
type RateLimitConfig struct {
	MaxMessages int
	Window      time.Duration
}

// Config holds the server configuration settings.
type Config struct {
	// Addr is the TCP listen address for the frame protocol.
	Addr string
	// WSAddr is the optional WebSocket listen address. Empty disables the
	// WebSocket endpoint.
	WSAddr string
	// AllowedOrigins restricts WebSocket upgrades; "*" allows any origin.
	AllowedOrigins []string

	MaxFrameSize int
	RateLimit    RateLimitConfig

	// AuthTimeout bounds how long an accepted socket may sit in the
	// authentication exchange before the server gives up on it.
	AuthTimeout time.Duration
	// WriteTimeout bounds every single frame write so one unresponsive peer
	// cannot stall a broadcast.
	WriteTimeout time.Duration
	// ShutdownTimeout bounds the graceful drain; remaining connections are
	// force-closed when it expires.
	ShutdownTimeout time.Duration

	// UserDB and BanDB are paths to the JSON-backed stores.
	UserDB string
	BanDB  string
	// RedisAddr, when set, switches ban persistence to Redis.
	RedisAddr string
}

func defaultConfig() Config {
	return Config{
		Addr:           ":65432",
		AllowedOrigins: []string{"http://localhost:8080"},
		MaxFrameSize:   4096,
		RateLimit: RateLimitConfig{
			MaxMessages: 5,
			Window:      10 * time.Second,
		},
		AuthTimeout:     30 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		UserDB:          "data/users.json",
		BanDB:           "data/bans.json",
	}
}

func sanitizeConfig(cfg Config) Config {
	def := defaultConfig()

	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = def.MaxFrameSize
	}
	if cfg.RateLimit.MaxMessages <= 0 {
		cfg.RateLimit.MaxMessages = def.RateLimit.MaxMessages
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = def.RateLimit.Window
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = def.AuthTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.UserDB == "" {
		cfg.UserDB = def.UserDB
	}
	if cfg.BanDB == "" {
		cfg.BanDB = def.BanDB
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config from environment variables, falling back
// to defaults for anything unset.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if addr := os.Getenv("WS_ADDR"); addr != "" {
		cfg.WSAddr = addr
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseList(origins)
	}
	if size := os.Getenv("MAX_FRAME_SIZE"); size != "" {
		cfg.MaxFrameSize = parseIntValue(size, cfg.MaxFrameSize)
	}
	if max := os.Getenv("RATE_LIMIT_MAX"); max != "" {
		cfg.RateLimit.MaxMessages = parseIntValue(max, cfg.RateLimit.MaxMessages)
	}
	if window := os.Getenv("RATE_LIMIT_WINDOW"); window != "" {
		cfg.RateLimit.Window = parseDurationValue(window, cfg.RateLimit.Window)
	}
	if timeout := os.Getenv("AUTH_TIMEOUT"); timeout != "" {
		cfg.AuthTimeout = parseDurationValue(timeout, cfg.AuthTimeout)
	}
	if timeout := os.Getenv("WRITE_TIMEOUT"); timeout != "" {
		cfg.WriteTimeout = parseDurationValue(timeout, cfg.WriteTimeout)
	}
	if timeout := os.Getenv("SHUTDOWN_TIMEOUT"); timeout != "" {
		cfg.ShutdownTimeout = parseDurationValue(timeout, cfg.ShutdownTimeout)
	}
	if path := os.Getenv("USER_DB"); path != "" {
		cfg.UserDB = path
	}
	if path := os.Getenv("BAN_DB"); path != "" {
		cfg.BanDB = path
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.RedisAddr = addr
	}

	return &cfg
}

func parseList(value string) []string {
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseDurationValue accepts Go duration strings ("90s", "2m") and, matching
// the plain-seconds convention of older deployments, bare integers.
func parseDurationValue(value string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
