package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/emmett/sublive/internal/audio"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"SONIOX_API_KEY", "SUBLIVE_API_KEY", "SUBLIVE_LOG_LEVEL", "SUBLIVE_METRICS_ADDR"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Display.MaxBlocks != 3 {
		t.Errorf("MaxBlocks = %d, want 3", cfg.Display.MaxBlocks)
	}
	if cfg.Display.SilenceTimeout != 15*time.Second {
		t.Errorf("SilenceTimeout = %s, want 15s", cfg.Display.SilenceTimeout)
	}
	if len(cfg.Soniox.LanguageHints) != 1 || cfg.Soniox.LanguageHints[0] != "en" {
		t.Errorf("LanguageHints = %v, want [en]", cfg.Soniox.LanguageHints)
	}
	if !cfg.Soniox.Speakers || cfg.Soniox.Translation.Enabled {
		t.Error("want diarization on and translation off by default")
	}

	// everything but the key is valid out of the box
	if err := cfg.Validate(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Validate() = %v, want only ErrMissingAPIKey", err)
	}
	cfg.Soniox.APIKey = "key"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
soniox:
  api_key: abc
  language_hints: [de, fr]
  translation:
    enabled: true
    target_language: es
audio:
  source: microphone
  device: USB
display:
  max_blocks: 5
  silence_timeout: 4s
stream:
  reconnect_delay: 250ms
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Soniox.APIKey != "abc" || cfg.Display.MaxBlocks != 5 {
		t.Errorf("got %+v", cfg.Soniox)
	}
	if cfg.Display.SilenceTimeout != 4*time.Second || cfg.Stream.ReconnectDelay != 250*time.Millisecond {
		t.Errorf("durations = %s %s", cfg.Display.SilenceTimeout, cfg.Stream.ReconnectDelay)
	}
	// unset keys keep their defaults
	if cfg.Display.Format != "console" || cfg.Soniox.Model == "" {
		t.Errorf("defaults lost: format %q model %q", cfg.Display.Format, cfg.Soniox.Model)
	}

	rs := cfg.RequestSettings()
	if !rs.Translate || rs.TargetLanguage != "es" || len(rs.LanguageHints) != 2 {
		t.Errorf("RequestSettings() = %+v", rs)
	}
	cc := cfg.CaptureConfig()
	if cc.Source != audio.SourceMicrophone || cc.Device != "USB" {
		t.Errorf("CaptureConfig() = %+v", cc)
	}
	if opts := cfg.StreamOptions(); opts.ReconnectDelay != 250*time.Millisecond {
		t.Errorf("StreamOptions() = %+v", opts)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("display: [unclosed"), 0644)
	if _, err := Load(bad); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadWithFallback(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	old := SystemConfigPath
	t.Cleanup(func() { SystemConfigPath = old })
	SystemConfigPath = filepath.Join(t.TempDir(), "none.yaml")

	cfg, err := LoadWithFallback("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Display.MaxBlocks != 3 {
		t.Errorf("expected defaults, got max_blocks %d", cfg.Display.MaxBlocks)
	}

	os.WriteFile(filepath.Join(home, ".subliverc"), []byte("display:\n  max_blocks: 7\n"), 0644)
	cfg, err = LoadWithFallback("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Display.MaxBlocks != 7 {
		t.Errorf("user config not used, max_blocks %d", cfg.Display.MaxBlocks)
	}

	if _, err := LoadWithFallback(filepath.Join(home, "explicit.yaml")); err == nil {
		t.Error("missing explicit path should fail")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Soniox.Context = "standup meeting"
	cfg.Display.SilenceTimeout = 90 * time.Second

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Soniox.Context != "standup meeting" || got.Display.SilenceTimeout != 90*time.Second {
		t.Errorf("round trip lost values: %+v", got.Display)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Run("variables", func(t *testing.T) {
		clearEnv(t)
		t.Chdir(t.TempDir())
		t.Setenv("SONIOX_API_KEY", "from-soniox")
		t.Setenv("SUBLIVE_API_KEY", "from-sublive")
		t.Setenv("SUBLIVE_LOG_LEVEL", "debug")
		t.Setenv("SUBLIVE_METRICS_ADDR", ":9100")

		cfg := DefaultConfig()
		cfg.ApplyEnv()
		if cfg.Soniox.APIKey != "from-sublive" {
			t.Errorf("APIKey = %q, want SUBLIVE_API_KEY to win", cfg.Soniox.APIKey)
		}
		if cfg.Logging.Level != "debug" || cfg.Server.MetricsAddr != ":9100" {
			t.Errorf("got level %q addr %q", cfg.Logging.Level, cfg.Server.MetricsAddr)
		}
	})

	t.Run("dotenv", func(t *testing.T) {
		clearEnv(t)
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, ".env"), []byte("SONIOX_API_KEY=from-dotenv\n"), 0600)
		t.Chdir(dir)

		cfg := DefaultConfig()
		cfg.ApplyEnv()
		if cfg.Soniox.APIKey != "from-dotenv" {
			t.Errorf("APIKey = %q, want from-dotenv", cfg.Soniox.APIKey)
		}
	})

	t.Run("file value kept without env", func(t *testing.T) {
		clearEnv(t)
		t.Chdir(t.TempDir())
		cfg := DefaultConfig()
		cfg.Soniox.APIKey = "from-file"
		cfg.ApplyEnv()
		if cfg.Soniox.APIKey != "from-file" {
			t.Errorf("APIKey = %q", cfg.Soniox.APIKey)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"unknown hint", func(c *Config) { c.Soniox.LanguageHints = []string{"en", "xx"} }, `"xx"`},
		{"bad target", func(c *Config) {
			c.Soniox.Translation.Enabled = true
			c.Soniox.Translation.TargetLanguage = "klingon"
		}, "translation target"},
		{"bad source", func(c *Config) { c.Audio.Source = "line-in" }, "unknown audio source"},
		{"file without path", func(c *Config) { c.Audio.Source = "file" }, "audio.file"},
		{"zero blocks", func(c *Config) { c.Display.MaxBlocks = 0 }, "max_blocks"},
		{"zero timeout", func(c *Config) { c.Display.SilenceTimeout = 0 }, "silence_timeout"},
		{"bad format", func(c *Config) { c.Display.Format = "html" }, "display format"},
		{"negative retries", func(c *Config) { c.Stream.MaxRetries = -1 }, "max_retries"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Soniox.APIKey = "key"
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %s", err, tt.want)
			}
		})
	}

	t.Run("joins every error", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Display.MaxBlocks = 0
		cfg.Logging.Level = "loud"
		err := cfg.Validate()
		if !errors.Is(err, ErrMissingAPIKey) || !strings.Contains(err.Error(), "max_blocks") || !strings.Contains(err.Error(), "loud") {
			t.Errorf("Validate() = %v", err)
		}
	})
}
