// Package logger owns the process-wide zerolog logger. Init is called once
// from each entry point; Get returns a usable logger even if Init was
// skipped (tests, ad-hoc tools).
package logger

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger
	once          sync.Once
)

func Init(level string, pretty bool) {
	once.Do(func() {
		lvl, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil || level == "" {
			lvl = zerolog.InfoLevel
		}

		var logger zerolog.Logger
		if pretty {
			logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		} else {
			logger = zerolog.New(os.Stderr)
		}
		defaultLogger = logger.Level(lvl).With().Timestamp().Logger()
	})
}

func Get() zerolog.Logger {
	Init(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_PRETTY") == "true")
	return defaultLogger
}
