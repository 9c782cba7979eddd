package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every configuration key looked up in the
// environment: "token" is read from BOUNTYHUB_TOKEN, "log.level" from
// BOUNTYHUB_LOG_LEVEL.
const EnvPrefix = "BOUNTYHUB"

// Default configuration values.
const (
	DefaultURL         = "https://bountyhub.org"
	DefaultTimeout     = 10 * time.Second
	DefaultFileTimeout = 240 * time.Second
	DefaultRetries     = 2
	DefaultLogLevel    = "warn"
	DefaultLogFormat   = "text"
)

// TokenPrefix is the prefix every BountyHub personal access token starts with.
const TokenPrefix = "bhv"

// Configuration keys.
const (
	KeyURL         = "url"
	KeyToken       = "token"
	KeyTimeout     = "timeout"
	KeyFileTimeout = "file_timeout"
	KeyRetries     = "retries"
	KeyJSON        = "json"
	KeyLogLevel    = "log.level"
	KeyLogFormat   = "log.format"
)

// DotEnvFiles are loaded, in order, before the configuration is read.
// Variables already present in the environment are never overridden.
var DotEnvFiles = []string{".env.local", ".env"} //nolint:gochecknoglobals // overridable in tests

// ErrMissingToken is returned when no token is configured.
var ErrMissingToken = errors.New("BOUNTYHUB_TOKEN is not set")

// ErrInvalidTokenFormat is returned when the token lacks the bhv prefix.
var ErrInvalidTokenFormat = errors.New("invalid token format: token does not start with " + TokenPrefix)

// Config holds the complete CLI configuration.
type Config struct {
	URL         string        `mapstructure:"url"`
	Token       string        `mapstructure:"token"`
	Timeout     time.Duration `mapstructure:"timeout"`
	FileTimeout time.Duration `mapstructure:"file_timeout"`
	Retries     int           `mapstructure:"retries"`
	JSON        bool          `mapstructure:"json"`
	Log         LogConfig     `mapstructure:"log"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyURL, DefaultURL)
	v.SetDefault(KeyToken, "")
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetDefault(KeyFileTimeout, DefaultFileTimeout)
	v.SetDefault(KeyRetries, DefaultRetries)
	v.SetDefault(KeyJSON, false)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
}

// NewViper returns a viper instance with defaults, environment binding and
// the config file read in. An explicit configFile must exist; otherwise
// $XDG_CONFIG_HOME/bh/config.yaml is read when present.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "bh"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return v, nil
}

// New decodes a Config from v and validates it. The token is checked
// separately by ValidateToken since not every command needs one.
func New(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	config.URL = strings.TrimRight(config.URL, "/")

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("url cannot be empty")
	}

	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("url must have http:// or https:// scheme, got %q", c.URL)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}

	if c.FileTimeout <= 0 {
		return fmt.Errorf("file_timeout must be positive, got %v", c.FileTimeout)
	}

	if c.Retries < 0 {
		return fmt.Errorf("retries cannot be negative, got %d", c.Retries)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}

	return nil
}

// ValidateToken checks that a token is present and well-formed.
func (c *Config) ValidateToken() error {
	if c.Token == "" {
		return ErrMissingToken
	}
	if !strings.HasPrefix(c.Token, TokenPrefix) {
		return ErrInvalidTokenFormat
	}
	return nil
}

// LoadDotEnv loads the given dotenv files, skipping the ones that do not exist.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}
