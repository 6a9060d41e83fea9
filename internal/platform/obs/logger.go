package obs

import (
	"context"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var logger atomic.Pointer[zerolog.Logger]

func init() {
	l := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	logger.Store(&l)
}

// Setup replaces the process logger. format is "json" or "console".
func Setup(level, format string, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	l := zerolog.New(w).With().Timestamp().Str("service", "route-optimizer").Logger().Level(lvl)
	logger.Store(&l)
}

func L() *zerolog.Logger { return logger.Load() }

// Ctx returns the logger annotated with the request id of ctx.
func Ctx(ctx context.Context) *zerolog.Logger {
	l := L().With()
	if id := RequestID(ctx); id != "" {
		l = l.Str("req_id", id)
	}
	out := l.Logger()
	return &out
}
