// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// currentConfig is the configuration the server was started with.
var (
	currentConfig *Config
	configMutex   sync.RWMutex
)

// Config holds every setting of the story server.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	// StoryFile is a YAML story script; empty serves the built-in academy story.
	StoryFile    string `env:"STORY_FILE"`
	WatchStory   bool   `env:"WATCH_STORY" envDefault:"false"`
	AssetBaseURL string `env:"ASSET_BASE_URL"`

	LogDir    string `env:"LOG_DIR" envDefault:"logs"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	DebugMode bool   `env:"DEBUG_MODE" envDefault:"true"`

	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	JanitorInterval time.Duration `env:"JANITOR_INTERVAL" envDefault:"1m"`
	MaxSessions     int           `env:"MAX_SESSIONS" envDefault:"1000"`

	// AllowedOrigins limits browser and WebSocket origins; empty allows all.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: .env not loaded: %v", err)
	}
	return Parse()
}

// Parse builds a Config from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("SESSION_TTL must not be negative")
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("MAX_SESSIONS must not be negative")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel)
	}
	return nil
}

// OriginAllowed reports whether a browser origin may call the API.
func (c *Config) OriginAllowed(origin string) bool {
	if len(c.AllowedOrigins) == 0 || origin == "" {
		return true
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" || strings.EqualFold(strings.TrimSpace(o), origin) {
			return true
		}
	}
	return false
}

// SetCurrentConfig records the active configuration.
func SetCurrentConfig(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	currentConfig = cfg
}

// GetCurrentConfig returns a copy of the active configuration, parsing the
// environment if none was set.
func GetCurrentConfig() *Config {
	configMutex.RLock()
	cfg := currentConfig
	configMutex.RUnlock()

	if cfg == nil {
		parsed, err := Parse()
		if err != nil {
			log.Printf("warning: using default config: %v", err)
			parsed = &Config{Port: "8080", LogDir: "logs", LogLevel: "info", DebugMode: true}
		}
		return parsed
	}

	configCopy := *cfg
	configCopy.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return &configCopy
}
