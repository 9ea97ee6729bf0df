package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. dev/development writes human-readable
// console lines; test defaults to warn; anything else emits JSON tagged with the
// service name. A parseable level overrides the environment default.
func NewLogger(env, level string) zerolog.Logger {
	var (
		out io.Writer = os.Stdout
		lvl           = zerolog.InfoLevel
	)
	switch env {
	case "dev", "development":
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		lvl = zerolog.DebugLevel
	case "test":
		out = os.Stderr
		lvl = zerolog.WarnLevel
	}
	if l, err := zerolog.ParseLevel(level); err == nil && level != "" {
		lvl = l
	}

	ctx := zerolog.New(out).Level(lvl).With().Timestamp()
	if _, console := out.(zerolog.ConsoleWriter); !console {
		ctx = ctx.Str("service", "rentalyzer")
	}
	return ctx.Logger()
}
