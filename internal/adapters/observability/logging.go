package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns the process logger: JSON to stdout, or a human-friendly
// console writer when APP_ENV is dev/development.
func NewLogger(env string) zerolog.Logger {
	var l zerolog.Logger
	if env == "dev" || env == "development" {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		l = zerolog.New(os.Stdout)
	}
	return l.With().Timestamp().Str("service", "review-board").Logger()
}
