package config

import (
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server          ServerConfig      `yaml:"server"`
	Database        DatabaseConfig    `yaml:"database"`
	Storage         StorageConfig     `yaml:"storage"`
	Geo             GeoConfig         `yaml:"geo"`
	Refresh         RefreshConfig     `yaml:"refresh"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	Log             LogConfig         `yaml:"log"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// ServerConfig contains API server settings
type ServerConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Token string `yaml:"token"` // Pre-shared token required for schedule writes
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig locates the persisted config blob
type StorageConfig struct {
	Bucket string `yaml:"bucket"`
	Key    string `yaml:"key"`
}

// GeoConfig contains upstream lookup settings
type GeoConfig struct {
	GeoIPURL      string   `yaml:"geoip_url"`
	DaylightURL   string   `yaml:"daylight_url"`
	HTTPTimeout   Duration `yaml:"http_timeout"`   // Timeout for upstream HTTP requests
	AstroFallback bool     `yaml:"astro_fallback"` // Compute daylight times locally when the upstream is down
}

// RefreshConfig contains periodic daylight refresh settings.
// The refresh geolocates a fixed IP (the installation's public address);
// leaving it empty disables the job.
type RefreshConfig struct {
	Cron string `yaml:"cron"`
	IP   string `yaml:"ip"`
}

// Enabled reports whether the refresh job should run.
func (c *RefreshConfig) Enabled() bool {
	return c.IP != ""
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	Colors  bool   `yaml:"colors"`
	UseJSON bool   `yaml:"json"`
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// GetShutdownTimeout returns the shutdown timeout with default
func (c *Config) GetShutdownTimeout() time.Duration {
	if c.ShutdownTimeout == 0 {
		return 5 * time.Second
	}
	return c.ShutdownTimeout.Duration()
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	// Database defaults
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./duskd.sqlite"
	}

	// Storage defaults
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "lights"
	}
	if cfg.Storage.Key == "" {
		cfg.Storage.Key = "config"
	}

	// Geo defaults
	if cfg.Geo.HTTPTimeout == 0 {
		cfg.Geo.HTTPTimeout = Duration(10 * time.Second)
	}

	// Refresh defaults
	if cfg.Refresh.Cron == "" {
		cfg.Refresh.Cron = "0 4 * * *"
	}

	// Healthcheck defaults
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}

	return &cfg, nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
