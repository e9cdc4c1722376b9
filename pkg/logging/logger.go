// Package logging wraps zerolog for studiosync.
//
// Loggers travel in the context. A sync run tags its logger with the run id,
// each studio adds its id and name, and each registry call adds the
// registry, so one line of a batch run can be traced back to its studio:
//
//	ctx = logging.WithStudio(ctx, studio.ID, studio.Name)
//	logging.Ctx(ctx).Debug().Str("candidate", name).Msg("Scored candidate")
//
// Code without a context logs through Default.
package logging

import (
	"os"
	"sync/atomic"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var defaultLogger atomic.Pointer[zerolog.Logger]

func init() {
	SetDefault(NewLoggerFromConfig(ConfigFromEnv()))
}

// Default returns the process-wide logger.
func Default() *zerolog.Logger {
	return defaultLogger.Load()
}

// SetDefault replaces the process-wide logger, including zerolog's global one.
func SetDefault(logger zerolog.Logger) {
	defaultLogger.Store(&logger)
	log.Logger = logger
}

func Debug() *zerolog.Event { return Default().Debug() }
func Info() *zerolog.Event  { return Default().Info() }
func Warn() *zerolog.Event  { return Default().Warn() }
func Error() *zerolog.Event { return Default().Error() }

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
