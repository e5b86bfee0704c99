package main

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/emmett/sublive/internal/app"
	"github.com/emmett/sublive/internal/config"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"en", []string{"en"}},
		{"en, de ,fr", []string{"en", "de", "fr"}},
		{" , ,", nil},
		{"", nil},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestApplyFlags(t *testing.T) {
	t.Run("unset flags keep config values", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Display.MaxBlocks = 7
		*maxBlocks = 2
		applyFlags(cfg, map[string]bool{})
		if cfg.Display.MaxBlocks != 7 {
			t.Errorf("MaxBlocks = %d, want 7", cfg.Display.MaxBlocks)
		}
	})

	t.Run("set flags override", func(t *testing.T) {
		cfg := config.DefaultConfig()
		*languages = "de,fr"
		*translate = true
		*targetLanguage = "es"
		*speakers = false
		*silenceTimeout = 3 * time.Second
		*grpcPort = 6000
		applyFlags(cfg, map[string]bool{
			"lang": true, "translate": true, "target": true,
			"speakers": true, "silence-timeout": true, "grpc-port": true,
		})
		if !reflect.DeepEqual(cfg.Soniox.LanguageHints, []string{"de", "fr"}) {
			t.Errorf("LanguageHints = %v", cfg.Soniox.LanguageHints)
		}
		if !cfg.Soniox.Translation.Enabled || cfg.Soniox.Translation.TargetLanguage != "es" {
			t.Errorf("Translation = %+v", cfg.Soniox.Translation)
		}
		if cfg.Soniox.Speakers {
			t.Error("Speakers should be disabled")
		}
		if cfg.Display.SilenceTimeout != 3*time.Second {
			t.Errorf("SilenceTimeout = %s", cfg.Display.SilenceTimeout)
		}
		if cfg.Server.GRPCPort != 6000 {
			t.Errorf("GRPCPort = %d", cfg.Server.GRPCPort)
		}
	})

	t.Run("file implies file source", func(t *testing.T) {
		cfg := config.DefaultConfig()
		*audioFile = "talk.wav"
		applyFlags(cfg, map[string]bool{"file": true})
		if cfg.Audio.Source != "file" || cfg.Audio.File != "talk.wav" {
			t.Errorf("Audio = %+v", cfg.Audio)
		}
	})

	t.Run("explicit source wins over file", func(t *testing.T) {
		cfg := config.DefaultConfig()
		*audioFile = "talk.wav"
		*source = "microphone"
		applyFlags(cfg, map[string]bool{"file": true, "source": true})
		if cfg.Audio.Source != "microphone" {
			t.Errorf("Source = %q, want microphone", cfg.Audio.Source)
		}
	})
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sublive.yaml")
	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Display.MaxBlocks != config.DefaultConfig().Display.MaxBlocks {
		t.Errorf("MaxBlocks = %d", cfg.Display.MaxBlocks)
	}

	if err := writeDefaultConfig(path); err == nil {
		t.Error("expected an error when the file exists")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}
}

type fakeToggler struct {
	paused bool
	status app.Status
	err    error
}

func (f *fakeToggler) Toggle() (bool, error) {
	if f.err != nil {
		return f.paused, f.err
	}
	f.paused = !f.paused
	return f.paused, nil
}

func (f *fakeToggler) Status() app.Status {
	if f.paused {
		return app.StatusPaused
	}
	return f.status
}

func TestTogglePause(t *testing.T) {
	tests := []struct {
		name string
		svc  *fakeToggler
		want app.Status
	}{
		{"pause", &fakeToggler{status: app.StatusConnected}, app.StatusPaused},
		{"resume while active", &fakeToggler{paused: true, status: app.StatusConnected}, app.StatusConnected},
		{"resume during outage", &fakeToggler{paused: true, status: app.StatusReconnecting}, app.StatusReconnecting},
		{"failed pause", &fakeToggler{status: app.StatusConnected, err: errors.New("device busy")}, app.StatusConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := app.NewHub()
			defer hub.Close()
			togglePause(tt.svc, hub, nil)
			if got := hub.Status().Status; got != tt.want {
				t.Errorf("status = %s, want %s", got, tt.want)
			}
		})
	}
}
