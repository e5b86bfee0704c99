package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/emmett/sublive/internal/audio"
	"github.com/emmett/sublive/internal/log"
	"github.com/emmett/sublive/internal/soniox"
	"github.com/emmett/sublive/internal/stream"
	"github.com/emmett/sublive/internal/transcript"
)

// ErrMissingAPIKey is returned by Validate when no credential is configured
var ErrMissingAPIKey = errors.New("soniox api key is not set (config soniox.api_key, SONIOX_API_KEY or SUBLIVE_API_KEY)")

// Output formats understood by the display loop
var formats = []string{"console", "json", "text"}

// Config represents the application configuration
type Config struct {
	// Recognition settings
	Soniox struct {
		APIKey        string   `yaml:"api_key"`
		Model         string   `yaml:"model"`
		Endpoint      string   `yaml:"endpoint"`
		LanguageHints []string `yaml:"language_hints"`
		Context       string   `yaml:"context"`
		Speakers      bool     `yaml:"enable_speakers"`
		Translation   struct {
			Enabled        bool   `yaml:"enabled"`
			TargetLanguage string `yaml:"target_language"`
		} `yaml:"translation"`
	} `yaml:"soniox"`

	// Audio settings
	Audio struct {
		Source     string `yaml:"source"`
		Device     string `yaml:"device"`
		File       string `yaml:"file"`
		Loop       bool   `yaml:"loop"`
		BufferSize int    `yaml:"buffer_size"`
	} `yaml:"audio"`

	// Display settings
	Display struct {
		MaxBlocks      int           `yaml:"max_blocks"`
		SilenceTimeout time.Duration `yaml:"silence_timeout"`
		Format         string        `yaml:"format"`
		FrameInterval  time.Duration `yaml:"frame_interval"`
	} `yaml:"display"`

	// Reconnect settings
	Stream struct {
		MaxRetries     int           `yaml:"max_retries"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	} `yaml:"stream"`

	// Diagnostics
	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`

	// Bridges
	Server struct {
		MetricsAddr string `yaml:"metrics_addr"`
		GRPCHost    string `yaml:"grpc_host"`
		GRPCPort    int    `yaml:"grpc_port"`
	} `yaml:"server"`

	// Capture toggle
	Hotkey string `yaml:"hotkey"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Recognition defaults
	cfg.Soniox.Model = soniox.DefaultModel
	cfg.Soniox.Endpoint = soniox.DefaultURL
	cfg.Soniox.LanguageHints = []string{"en"}
	cfg.Soniox.Speakers = true
	cfg.Soniox.Translation.Enabled = false
	cfg.Soniox.Translation.TargetLanguage = "en"

	// Audio defaults
	cfg.Audio.Source = string(audio.SourceLoopback)
	cfg.Audio.BufferSize = audio.DefaultPoolSize

	// Display defaults
	cfg.Display.MaxBlocks = transcript.DefaultMaxBlocks
	cfg.Display.SilenceTimeout = transcript.DefaultSilenceTimeout
	cfg.Display.Format = "console"
	cfg.Display.FrameInterval = 33 * time.Millisecond

	// Reconnect defaults
	cfg.Stream.MaxRetries = stream.DefaultMaxRetries
	cfg.Stream.ReconnectDelay = stream.DefaultReconnectDelay

	// Logging defaults
	cfg.Logging.Level = "info"

	// Server defaults
	cfg.Server.GRPCHost = "localhost"
	cfg.Server.GRPCPort = 50051

	cfg.Hotkey = "ctrl+shift+s"

	return cfg
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// UserConfigPath returns ~/.subliverc
func UserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".subliverc"), nil
}

// SystemConfigPath is consulted when no user config exists
var SystemConfigPath = "/etc/sublive/config.yaml"

// LoadWithFallback attempts to load configuration from multiple locations
// Priority: explicit path > ~/.subliverc > /etc/sublive/config.yaml
func LoadWithFallback(explicitPath string) (*Config, error) {
	// If explicit path is provided, use it
	if explicitPath != "" {
		return Load(explicitPath)
	}

	// Try user config (~/.subliverc)
	if userConfigPath, err := UserConfigPath(); err == nil {
		if _, err := os.Stat(userConfigPath); err == nil {
			cfg, err := Load(userConfigPath)
			if err == nil {
				return cfg, nil
			}
			log.Warnf("ignoring %s: %v", userConfigPath, err)
		}
	}

	// Try system config
	if _, err := os.Stat(SystemConfigPath); err == nil {
		cfg, err := Load(SystemConfigPath)
		if err == nil {
			return cfg, nil
		}
		log.Warnf("ignoring %s: %v", SystemConfigPath, err)
	}

	// No config file found, return defaults
	return DefaultConfig(), nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may carry an API key
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv loads a .env file from the working directory if present, then
// lets environment variables override the file settings.
func (c *Config) ApplyEnv() {
	if err := godotenv.Load(); err == nil {
		log.Debugf("loaded .env")
	}

	if v := os.Getenv("SONIOX_API_KEY"); v != "" {
		c.Soniox.APIKey = v
	}
	if v := os.Getenv("SUBLIVE_API_KEY"); v != "" {
		c.Soniox.APIKey = v
	}
	if v := os.Getenv("SUBLIVE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SUBLIVE_METRICS_ADDR"); v != "" {
		c.Server.MetricsAddr = v
	}
}

// Validate reports every problem at once
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Soniox.APIKey) == "" {
		errs = append(errs, ErrMissingAPIKey)
	}
	for _, code := range c.Soniox.LanguageHints {
		if !soniox.IsSupportedLanguage(code) {
			errs = append(errs, fmt.Errorf("unsupported language hint: %q", code))
		}
	}
	if c.Soniox.Translation.Enabled && !soniox.IsSupportedLanguage(c.Soniox.Translation.TargetLanguage) {
		errs = append(errs, fmt.Errorf("unsupported translation target: %q", c.Soniox.Translation.TargetLanguage))
	}

	source, err := audio.ParseSource(c.Audio.Source)
	if err != nil {
		errs = append(errs, err)
	}
	if source == audio.SourceFile && c.Audio.File == "" {
		errs = append(errs, errors.New("audio.file is required when audio.source is file"))
	}
	if c.Audio.BufferSize < 1 {
		errs = append(errs, fmt.Errorf("audio.buffer_size must be positive, got %d", c.Audio.BufferSize))
	}

	if c.Display.MaxBlocks < 1 {
		errs = append(errs, fmt.Errorf("display.max_blocks must be at least 1, got %d", c.Display.MaxBlocks))
	}
	if c.Display.SilenceTimeout <= 0 {
		errs = append(errs, fmt.Errorf("display.silence_timeout must be positive, got %s", c.Display.SilenceTimeout))
	}
	if c.Display.FrameInterval <= 0 {
		errs = append(errs, fmt.Errorf("display.frame_interval must be positive, got %s", c.Display.FrameInterval))
	}
	if !isFormat(c.Display.Format) {
		errs = append(errs, fmt.Errorf("unknown display format: %q (valid: %s)", c.Display.Format, strings.Join(formats, ", ")))
	}

	if c.Stream.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("stream.max_retries must not be negative, got %d", c.Stream.MaxRetries))
	}
	if c.Stream.ReconnectDelay < 0 {
		errs = append(errs, fmt.Errorf("stream.reconnect_delay must not be negative, got %s", c.Stream.ReconnectDelay))
	}

	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func isFormat(f string) bool {
	for _, v := range formats {
		if f == v {
			return true
		}
	}
	return false
}

// RequestSettings extracts the handshake settings
func (c *Config) RequestSettings() soniox.RequestSettings {
	return soniox.RequestSettings{
		APIKey:         c.Soniox.APIKey,
		Model:          c.Soniox.Model,
		LanguageHints:  append([]string(nil), c.Soniox.LanguageHints...),
		Context:        c.Soniox.Context,
		Speakers:       c.Soniox.Speakers,
		Translate:      c.Soniox.Translation.Enabled,
		TargetLanguage: c.Soniox.Translation.TargetLanguage,
	}
}

// CaptureConfig extracts the audio capture settings
func (c *Config) CaptureConfig() audio.CaptureConfig {
	cc := audio.DefaultConfig()
	if source, err := audio.ParseSource(c.Audio.Source); err == nil {
		cc.Source = source
	}
	cc.Device = c.Audio.Device
	cc.File = c.Audio.File
	cc.Loop = c.Audio.Loop
	if c.Audio.BufferSize > 0 {
		cc.ChannelSize = c.Audio.BufferSize
	}
	return cc
}

// StreamOptions extracts the worker's reconnect settings
func (c *Config) StreamOptions() stream.Options {
	return stream.Options{
		MaxRetries:     c.Stream.MaxRetries,
		ReconnectDelay: c.Stream.ReconnectDelay,
	}
}
