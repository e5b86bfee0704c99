package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// FileName is the diagnostics log written inside the log directory
const FileName = "sublive.log"

var (
	diagLog  = zerolog.Nop()
	diagFile *os.File
	logMu    sync.Mutex
	logReady bool
	dir      string
)

// Options configures Init
type Options struct {
	// Dir is the log directory. Empty writes to Stderr instead of a file.
	Dir string
	// Level is a zerolog level name such as "debug" or "info"
	Level string
	// Stderr mirrors log lines to standard error
	Stderr bool
}

// ResolveDir picks the log directory: flag, then SUBLIVE_LOG_PATH, then the
// per-user config directory.
func ResolveDir(flagPath string) (string, error) {
	if flagPath != "" {
		return absolute(flagPath)
	}
	if envPath := os.Getenv("SUBLIVE_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "sublive", "logs"), nil
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

// ParseLevel validates a level name. An empty name means info.
func ParseLevel(level string) (zerolog.Level, error) {
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

// Init opens the diagnostics log. Until Init succeeds every call is a no-op.
func Init(opts Options) error {
	logMu.Lock()
	defer logMu.Unlock()

	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stderr
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(opts.Dir, FileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		closeFile()
		diagFile = f
		dir = opts.Dir
		out = f
		if opts.Stderr {
			out = io.MultiWriter(f, os.Stderr)
		}
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).Level(lvl).With().Timestamp().Int("pid", os.Getpid()).Logger()
	logReady = true
	return nil
}

// SetLogger replaces the logger, for callers that own their own writer
func SetLogger(l zerolog.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	diagLog = l
	logReady = true
}

// Close flushes and closes the log file
func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	closeFile()
	diagLog = zerolog.Nop()
	logReady = false
}

func closeFile() {
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
}

// Dir returns the directory passed to the last successful Init
func Dir() string {
	logMu.Lock()
	defer logMu.Unlock()
	return dir
}

// Component returns a child logger tagged with the component name.
// Loggers taken before Init stay silent.
func Component(name string) zerolog.Logger {
	logMu.Lock()
	defer logMu.Unlock()
	return diagLog.With().Str("component", name).Logger()
}

func logger() (zerolog.Logger, bool) {
	logMu.Lock()
	defer logMu.Unlock()
	return diagLog, logReady
}

func Info(msg string) {
	if l, ok := logger(); ok {
		l.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if l, ok := logger(); ok {
		l.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Debugf(format string, args ...any) {
	if l, ok := logger(); ok {
		l.Debug().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if l, ok := logger(); ok {
		l.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if l, ok := logger(); ok {
		l.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if l, ok := logger(); ok {
		l.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if l, ok := logger(); ok {
		l.Warn().Msg(fmt.Sprintf(format, args...))
	}
}
