package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LevelEnv names the environment variable that sets the log level.
const LevelEnv = "RELAY_LOG_LEVEL"

// Init initializes the global logger from the environment.
// RELAY_LOG_LEVEL controls the log level: trace, debug, info, warn, error (default: info).
//
// Human-readable console output is used for local runs. In Lambda the output
// stays JSON so CloudWatch Logs Insights can query fields.
func Init() {
	InitWriter(os.Stderr, os.Getenv("AWS_LAMBDA_FUNCTION_NAME") == "")
}

// InitWriter initializes the global logger writing to w, optionally through
// zerolog's console formatter.
func InitWriter(w io.Writer, console bool) {
	zerolog.SetGlobalLevel(ParseLevel(os.Getenv(LevelEnv)))
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	if console {
		w = zerolog.ConsoleWriter{Out: w}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// SetLevel changes the global log level. An empty level leaves it unchanged.
func SetLevel(level string) {
	if level == "" {
		return
	}
	zerolog.SetGlobalLevel(ParseLevel(level))
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
