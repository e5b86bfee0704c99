package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/emmett/sublive/internal/app"
	"github.com/emmett/sublive/internal/audio"
	"github.com/emmett/sublive/internal/config"
	"github.com/emmett/sublive/internal/input"
	"github.com/emmett/sublive/internal/log"
	"github.com/emmett/sublive/internal/metrics"
	"github.com/emmett/sublive/internal/output"
	grpcserver "github.com/emmett/sublive/internal/server/grpc"
	mcpserver "github.com/emmett/sublive/internal/server/mcp"
	"github.com/emmett/sublive/internal/soniox"
	"github.com/emmett/sublive/internal/stream"
	"github.com/emmett/sublive/internal/transcript"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

var (
	configFile     = flag.String("config", "", "Path to configuration file (default: ~/.subliverc or /etc/sublive/config.yaml)")
	mode           = flag.String("mode", "console", "Operation mode: console, server, mcp")
	source         = flag.String("source", "loopback", "Audio source: loopback, microphone, file")
	audioDevice    = flag.String("device", "", "Audio device name or ID (use -list-devices to see available devices)")
	audioFile      = flag.String("file", "", "WAV file to replay when -source is file")
	outputFormat   = flag.String("format", "console", "Output format: console, json, text")
	languages      = flag.String("lang", "en", "Comma separated language hints")
	contextText    = flag.String("context", "", "Domain context passed to the recognizer")
	translate      = flag.Bool("translate", false, "Translate subtitles into the -target language")
	targetLanguage = flag.String("target", "en", "Translation target language")
	speakers       = flag.Bool("speakers", true, "Label subtitles by speaker")
	maxBlocks      = flag.Int("max-blocks", transcript.DefaultMaxBlocks, "Number of final subtitle blocks kept on screen")
	silenceTimeout = flag.Duration("silence-timeout", transcript.DefaultSilenceTimeout, "Clear subtitles after this much silence")
	hotkeyStr      = flag.String("hotkey", "ctrl+shift+s", "Global hotkey that pauses and resumes capture (empty to disable)")
	metricsAddr    = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	grpcPort       = flag.Int("grpc-port", 50051, "gRPC port in server mode")
	logLevel       = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logDir         = flag.String("log-dir", "", "Directory for sublive.log (default: $SUBLIVE_LOG_PATH or the user config dir)")
	listDevices    = flag.Bool("list-devices", false, "List audio devices for -source and exit")
	initConfig     = flag.Bool("init-config", false, "Write a default configuration file and exit")
	showVersion    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("sublive v%s\n", Version)
		fmt.Printf("  Commit:  %s\n", GitCommit)
		fmt.Printf("  Branch:  %s\n", GitBranch)
		fmt.Printf("  Built:   %s\n", BuildTime)
		os.Exit(0)
	}

	if *initConfig {
		if err := writeDefaultConfig(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.LoadWithFallback(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()

	flagsSet := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		flagsSet[f.Name] = true
	})
	applyFlags(cfg, flagsSet)

	if *listDevices {
		src, err := audio.ParseSource(cfg.Audio.Source)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := app.NewDeviceManager().ListDevices(src); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration:\n%v\n", err)
		if errors.Is(err, config.ErrMissingAPIKey) {
			fmt.Fprintln(os.Stderr, "\nSet SONIOX_API_KEY or run `sublive -init-config` and edit the file.")
		}
		os.Exit(2)
	}

	logPath, err := log.ResolveDir(cfg.Logging.Dir)
	if err == nil {
		// the console owns stdout and the terminal, so only server mode mirrors to stderr
		err = log.Init(log.Options{Dir: logPath, Level: cfg.Logging.Level, Stderr: *mode == "server"})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	defer log.Close()
	log.Infof("sublive v%s (commit: %s, branch: %s, built: %s)", Version, GitCommit, GitBranch, BuildTime)

	if err := run(cfg); err != nil {
		log.Errorf("exiting: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// applyFlags lets explicitly set flags override the configuration file
func applyFlags(cfg *config.Config, set map[string]bool) {
	if set["source"] {
		cfg.Audio.Source = *source
	}
	if set["device"] {
		cfg.Audio.Device = *audioDevice
	}
	if set["file"] {
		cfg.Audio.File = *audioFile
		if !set["source"] {
			cfg.Audio.Source = string(audio.SourceFile)
		}
	}
	if set["format"] {
		cfg.Display.Format = *outputFormat
	}
	if set["lang"] {
		cfg.Soniox.LanguageHints = splitList(*languages)
	}
	if set["context"] {
		cfg.Soniox.Context = *contextText
	}
	if set["translate"] {
		cfg.Soniox.Translation.Enabled = *translate
	}
	if set["target"] {
		cfg.Soniox.Translation.TargetLanguage = *targetLanguage
	}
	if set["speakers"] {
		cfg.Soniox.Speakers = *speakers
	}
	if set["max-blocks"] {
		cfg.Display.MaxBlocks = *maxBlocks
	}
	if set["silence-timeout"] {
		cfg.Display.SilenceTimeout = *silenceTimeout
	}
	if set["hotkey"] {
		cfg.Hotkey = *hotkeyStr
	}
	if set["metrics-addr"] {
		cfg.Server.MetricsAddr = *metricsAddr
	}
	if set["grpc-port"] {
		cfg.Server.GRPCPort = *grpcPort
	}
	if set["log-level"] {
		cfg.Logging.Level = *logLevel
	}
	if set["log-dir"] {
		cfg.Logging.Dir = *logDir
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeDefaultConfig(path string) error {
	if path == "" {
		p, err := config.UserConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func run(cfg *config.Config) error {
	switch *mode {
	case "console", "server", "mcp":
	default:
		return fmt.Errorf("unknown mode: %s (valid: console, server, mcp)", *mode)
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	var m *metrics.Metrics
	if cfg.Server.MetricsAddr != "" {
		m = metrics.NewMetrics()
		go func() {
			if err := m.Serve(ctx, cfg.Server.MetricsAddr); err != nil {
				log.Errorf("metrics server: %v", err)
			}
		}()
	}

	if src, _ := audio.ParseSource(cfg.Audio.Source); src != audio.SourceFile && cfg.Audio.Device != "" {
		if _, err := app.NewDeviceManager().SelectDevice(src, cfg.Audio.Device); err != nil {
			return err
		}
	}

	svc := app.NewService(app.ServiceConfig{
		Capture:  cfg.CaptureConfig(),
		Request:  cfg.RequestSettings(),
		Endpoint: cfg.Soniox.Endpoint,
		Stream:   cfg.StreamOptions(),
		Metrics:  m,
	})
	// the session outlives the signal context so Stop can flush it
	if err := svc.Start(context.Background()); err != nil {
		return err
	}

	// stdout belongs to the MCP transport in mcp mode
	var renderer output.Renderer
	if *mode == "console" {
		r, err := output.New(cfg.Display.Format, os.Stdout)
		if err != nil {
			svc.Stop()
			return err
		}
		renderer = r
		renderer.Status(output.StatusInfo, fmt.Sprintf("capturing %s (%s), waiting for audio", cfg.Audio.Source, svc.Format()))
	}

	display := app.NewDisplay(app.DisplayConfig{
		Store:          transcript.NewStore(cfg.Display.MaxBlocks),
		Events:         svc.Events(),
		Renderer:       renderer,
		Metrics:        m,
		FrameInterval:  cfg.Display.FrameInterval,
		SilenceTimeout: cfg.Display.SilenceTimeout,
	})
	hub := display.Hub()
	defer hub.Close()

	switch *mode {
	case "server":
		srv := grpcserver.NewServer(grpcserver.Config{Host: cfg.Server.GRPCHost, Port: cfg.Server.GRPCPort}, hub)
		go func() {
			if err := srv.Start(); err != nil {
				log.Errorf("gRPC server: %v", err)
				cancel()
			}
		}()
		defer srv.Stop()
		fmt.Fprintf(os.Stderr, "Serving subtitles on %s:%d\n", cfg.Server.GRPCHost, cfg.Server.GRPCPort)

	case "mcp":
		srv := mcpserver.NewServer(mcpserver.Config{ServerVersion: Version}, hub)
		go func() {
			if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
				log.Errorf("MCP server: %v", err)
			}
			// the client went away
			cancel()
		}()

	case "console":
		if cfg.Hotkey != "" {
			hk := input.NewHotkeyManager(func() {
				togglePause(svc, hub, renderer)
			})
			if err := hk.Start(ctx, cfg.Hotkey); err != nil {
				log.Warnf("hotkey disabled: %v", err)
			} else {
				defer hk.Stop()
				renderer.Status(output.StatusInfo, fmt.Sprintf("press %s to pause", cfg.Hotkey))
			}
		}
	}

	go func() {
		<-ctx.Done()
		log.Info("stopping")
		if err := svc.Stop(); err != nil && !errors.Is(err, context.Canceled) {
			log.Warnf("session ended with error: %v", err)
		}
	}()

	err := display.Run(context.Background())
	cancel()
	svc.Stop()

	var se *soniox.ServiceError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &se):
		return fmt.Errorf("service rejected the session: %w", se)
	case errors.Is(err, stream.ErrConnectionLost):
		return fmt.Errorf("%w, giving up after %d retries", err, maxRetries(cfg))
	default:
		return err
	}
}

func maxRetries(cfg *config.Config) int {
	if cfg.Stream.MaxRetries > 0 {
		return cfg.Stream.MaxRetries
	}
	return stream.DefaultMaxRetries
}

// toggler is the part of app.Service the hotkey drives
type toggler interface {
	Toggle() (paused bool, err error)
	Status() app.Status
}

// togglePause flips capture and publishes the status the service reports,
// so a failed toggle or a resume during an outage shows the real state.
func togglePause(svc toggler, hub *app.Hub, renderer output.Renderer) {
	paused, err := svc.Toggle()
	hub.SetStatus(svc.Status(), "")
	if err != nil {
		log.Warnf("toggle capture: %v", err)
		if renderer != nil {
			renderer.Status(output.StatusWarning, fmt.Sprintf("toggle capture: %v", err))
		}
		return
	}

	msg := "capture resumed"
	if paused {
		msg = "capture paused"
	}
	if renderer != nil {
		renderer.Status(output.StatusInfo, msg)
	}
}
