package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/studiosync/pkg/constants"
)

// Config describes where logs go and how they look.
type Config struct {
	// Level is trace, debug, info, warn or error. Unknown values mean info.
	Level string

	// Format is json, console or auto. Auto picks console only when the
	// output is a terminal, so plugin runs always log JSON.
	Format string

	// Output is stderr, stdout, discard or a file path. Files are appended
	// to and serve as the progress log of long batch runs.
	Output string

	NoColor   bool
	AddCaller bool

	// Fields are attached to every line.
	Fields map[string]any
}

// ConfigFromEnv reads LOG_LEVEL, LOG_FORMAT, LOG_OUTPUT, LOG_CALLER and NO_COLOR.
func ConfigFromEnv() *Config {
	return &Config{
		Level:     os.Getenv("LOG_LEVEL"),
		Format:    os.Getenv("LOG_FORMAT"),
		Output:    os.Getenv("LOG_OUTPUT"),
		NoColor:   os.Getenv("NO_COLOR") != "",
		AddCaller: os.Getenv("LOG_CALLER") == "true",
	}
}

// NewLoggerFromConfig builds a logger and sets the zerolog global level to match.
func NewLoggerFromConfig(cfg *Config) zerolog.Logger {
	if cfg == nil {
		cfg = ConfigFromEnv()
	}
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	ctx := zerolog.New(cfg.writer()).Level(level).With().Timestamp()
	if cfg.AddCaller || level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	if len(cfg.Fields) > 0 {
		ctx = ctx.Fields(cfg.Fields)
	}
	return ctx.Logger()
}

// Configure replaces the default logger.
func Configure(cfg *Config) {
	SetDefault(NewLoggerFromConfig(cfg))
}

func (cfg *Config) writer() io.Writer {
	out, terminal := openOutput(cfg.Output)
	switch strings.ToLower(cfg.Format) {
	case "json":
		return out
	case "console", "pretty":
	default:
		if !terminal {
			return out
		}
	}
	cw := zerolog.ConsoleWriter{Out: out, NoColor: cfg.NoColor || !terminal, TimeFormat: time.Kitchen}
	if !terminal {
		cw.TimeFormat = time.RFC3339
	}
	return cw
}

// openOutput resolves an output name. A file that cannot be opened falls
// back to stderr so logging never stops a run.
func openOutput(name string) (io.Writer, bool) {
	switch strings.ToLower(name) {
	case "", "stderr":
		return os.Stderr, isTerminal(os.Stderr)
	case "stdout":
		return os.Stdout, isTerminal(os.Stdout)
	case "discard", "none":
		return io.Discard, false
	}
	if err := os.MkdirAll(filepath.Dir(name), constants.DirPermissions); err != nil {
		return os.Stderr, isTerminal(os.Stderr)
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, constants.FilePermissions)
	if err != nil {
		return os.Stderr, isTerminal(os.Stderr)
	}
	return f, false
}

var levelAliases = map[string]string{
	"warning": "warn",
	"none":    "disabled",
	"off":     "disabled",
}

func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if alias, ok := levelAliases[level]; ok {
		level = alias
	}
	if level == "" {
		return zerolog.InfoLevel
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}
