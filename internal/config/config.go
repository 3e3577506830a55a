package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the full agent configuration, loaded from YAML with
// environment-variable overrides
type Config struct {
	Env string `yaml:"env" env:"COGNIVEX_ENV" env-default:"production"`

	Log struct {
		Level  string `yaml:"level" env:"COGNIVEX_LOG_LEVEL" env-default:"info"`
		Format string `yaml:"format" env:"COGNIVEX_LOG_FORMAT" env-default:"json"`
	} `yaml:"log"`

	// StoragePath is the sqlite database holding the overflow spool
	StoragePath string `yaml:"storage_path" env:"COGNIVEX_STORAGE_PATH" env-default:"cognivex.db"`

	Client struct {
		ID string `yaml:"id" env:"COGNIVEX_CLIENT_ID"`
	} `yaml:"client"`

	Server struct {
		Port             int `yaml:"port" env:"COGNIVEX_SERVER_PORT" env-default:"47831"`
		ContextTTL       int `yaml:"context_ttl" env:"COGNIVEX_CONTEXT_TTL" env-default:"300"`    // seconds
		ReadTimeout      int `yaml:"read_timeout" env:"COGNIVEX_READ_TIMEOUT" env-default:"15"`   // seconds
		WriteTimeout     int `yaml:"write_timeout" env:"COGNIVEX_WRITE_TIMEOUT" env-default:"15"` // seconds
		MaxEventsPerPost int `yaml:"max_events_per_post" env:"COGNIVEX_MAX_EVENTS_PER_POST" env-default:"500"`
	} `yaml:"server"`

	Sink struct {
		BaseURL string `yaml:"base_url" env:"COGNIVEX_SINK_URL"`
		APIKey  string `yaml:"api_key" env:"COGNIVEX_SINK_API_KEY"`
		Table   string `yaml:"table" env:"COGNIVEX_SINK_TABLE" env-default:"behavior_logs"`
		Timeout int    `yaml:"timeout" env:"COGNIVEX_SINK_TIMEOUT" env-default:"30"` // seconds
	} `yaml:"sink"`

	Session struct {
		BaseURL string `yaml:"base_url" env:"COGNIVEX_SESSION_URL"`
		APIKey  string `yaml:"api_key" env:"COGNIVEX_SESSION_API_KEY"`
		Timeout int    `yaml:"timeout" env:"COGNIVEX_SESSION_TIMEOUT" env-default:"10"` // seconds
	} `yaml:"session"`

	Monitor struct {
		BatchSize         int `yaml:"batch_size" env:"COGNIVEX_BATCH_SIZE" env-default:"20"`
		BatchInterval     int `yaml:"batch_interval" env:"COGNIVEX_BATCH_INTERVAL" env-default:"10"`    // seconds
		MoveThrottle      int `yaml:"move_throttle" env:"COGNIVEX_MOVE_THROTTLE" env-default:"100"`     // milliseconds
		ScrollThrottle    int `yaml:"scroll_throttle" env:"COGNIVEX_SCROLL_THROTTLE" env-default:"200"` // milliseconds
		MaxBufferedEvents int `yaml:"max_buffered_events" env:"COGNIVEX_MAX_BUFFERED" env-default:"5000"`
		SpoolInterval     int `yaml:"spool_interval" env:"COGNIVEX_SPOOL_INTERVAL" env-default:"60"` // seconds
	} `yaml:"monitor"`
}

// LoadConfig reads the configuration file and applies environment overrides.
// A missing file is not an error: defaults plus environment are used.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Monitor.BatchSize <= 0 {
		return fmt.Errorf("monitor.batch_size must be positive, got %d", c.Monitor.BatchSize)
	}
	if c.Monitor.BatchInterval <= 0 {
		return fmt.Errorf("monitor.batch_interval must be positive, got %d", c.Monitor.BatchInterval)
	}
	if c.Sink.BaseURL == "" {
		return fmt.Errorf("sink.base_url is required")
	}
	return nil
}
