package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Tyrowin/gridduel/internal/game"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `yaml:"burst"`
	RefillInterval time.Duration `yaml:"refill_interval"`
}

// GameConfig holds the room defaults and bounds handed to the registry.
type GameConfig struct {
	DefaultBoardSize     int           `yaml:"default_board_size"`
	MaxBoardSize         int           `yaml:"max_board_size"`
	DefaultMoveTimeLimit time.Duration `yaml:"move_time_limit"`
	MaxMoveTimeLimit     time.Duration `yaml:"max_move_time_limit"`
	AutoCreateRooms      bool          `yaml:"auto_create_rooms"`
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port           string          `yaml:"port"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	MaxMessageSize int64           `yaml:"max_message_size"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	LogLevel       string          `yaml:"log_level"`
	LogFormat      string          `yaml:"log_format"`
	Game           GameConfig      `yaml:"game"`
}

var (
	configMu        sync.RWMutex
	activeConfig    Config
	allowedOrigins  map[string]struct{}
	allowAllOrigins bool
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	opts := game.DefaultOptions()
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: 512,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		LogLevel:  "info",
		LogFormat: "console",
		Game: GameConfig{
			DefaultBoardSize:     opts.DefaultBoardSize,
			MaxBoardSize:         opts.MaxBoardSize,
			DefaultMoveTimeLimit: opts.DefaultMoveTimeLimit,
			MaxMoveTimeLimit:     opts.MaxMoveTimeLimit,
			AutoCreateRooms:      opts.AutoCreate,
		},
	}
}

func sanitizeConfig(cfg Config) Config {
	def := defaultConfig()

	if cfg.Port == "" {
		cfg.Port = def.Port
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = def.LogFormat
	}

	g := &cfg.Game
	if g.MaxBoardSize < game.MinBoardSize {
		g.MaxBoardSize = def.Game.MaxBoardSize
	}
	if g.DefaultBoardSize < game.MinBoardSize || g.DefaultBoardSize > g.MaxBoardSize {
		g.DefaultBoardSize = game.MinBoardSize
	}
	if g.MaxMoveTimeLimit < time.Second {
		g.MaxMoveTimeLimit = def.Game.MaxMoveTimeLimit
	}
	if g.DefaultMoveTimeLimit < time.Second || g.DefaultMoveTimeLimit > g.MaxMoveTimeLimit {
		g.DefaultMoveTimeLimit = min(def.Game.DefaultMoveTimeLimit, g.MaxMoveTimeLimit)
	}

	normalizedOrigins, allowAll := normalizeOrigins(cfg.AllowedOrigins)
	cfg.AllowedOrigins = normalizedOrigins

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	allowAllOrigins = allowAll
	allowedOrigins = make(map[string]struct{}, len(normalizedOrigins))
	for _, origin := range normalizedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		sanitizeConfig(defaultConfig())
		return
	}

	sanitized := *cfg
	sanitized.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	sanitizeConfig(sanitized)
}

// CurrentConfig returns a copy of the active configuration.
func CurrentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// GameOptions converts the game section into registry options. Notifier,
// clock and logger are left for the caller to fill.
func (c Config) GameOptions() game.Options {
	return game.Options{
		DefaultBoardSize:     c.Game.DefaultBoardSize,
		MaxBoardSize:         c.Game.MaxBoardSize,
		DefaultMoveTimeLimit: c.Game.DefaultMoveTimeLimit,
		MaxMoveTimeLimit:     c.Game.MaxMoveTimeLimit,
		AutoCreate:           c.Game.AutoCreateRooms,
	}
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// at path, and the environment, in that order of precedence.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		if err := LoadConfigFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(&cfg)
	return &cfg, nil
}

// LoadConfigFile decodes the YAML file at path over cfg. Keys missing from
// the file keep their current values.
func LoadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()
	applyEnv(&cfg)
	return &cfg
}

func applyEnv(cfg *Config) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}
	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}
	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}
	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseSeconds(interval, cfg.RateLimit.RefillInterval)
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.LogFormat = format
	}

	// Game
	if size := os.Getenv("DEFAULT_BOARD_SIZE"); size != "" {
		cfg.Game.DefaultBoardSize = parseIntValue(size, cfg.Game.DefaultBoardSize)
	}
	if size := os.Getenv("MAX_BOARD_SIZE"); size != "" {
		cfg.Game.MaxBoardSize = parseIntValue(size, cfg.Game.MaxBoardSize)
	}
	if limit := os.Getenv("MOVE_TIME_LIMIT"); limit != "" {
		cfg.Game.DefaultMoveTimeLimit = parseSeconds(limit, cfg.Game.DefaultMoveTimeLimit)
	}
	if limit := os.Getenv("MAX_MOVE_TIME_LIMIT"); limit != "" {
		cfg.Game.MaxMoveTimeLimit = parseSeconds(limit, cfg.Game.MaxMoveTimeLimit)
	}
	if auto := os.Getenv("AUTO_CREATE_ROOMS"); auto != "" {
		if v, err := strconv.ParseBool(auto); err == nil {
			cfg.Game.AutoCreateRooms = v
		}
	}
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseSeconds accepts a whole number of seconds or a Go duration string.
func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
