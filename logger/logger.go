package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the service logger. Local environments get a console writer and debug
// level; everything else logs JSON at info.
func New(appEnv string) zerolog.Logger {
	level := zerolog.InfoLevel
	local := appEnv == "local" || appEnv == "development"
	if local {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Logger()

	if local {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return logger
}
