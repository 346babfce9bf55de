package log

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/tuanvumaihuynh/product-catalog/internal/config"
)

// errorColor is the ANSI 256 color used by tint for error attributes.
const errorColor = 9

// NewSlogLogger creates the process logger, writing to stdout, and installs it as the slog default.
func NewSlogLogger(cfg config.Log) *slog.Logger {
	logger := slog.New(newHandler(os.Stdout, cfg))
	slog.SetDefault(logger)

	return logger
}

func newHandler(w io.Writer, cfg config.Log) slog.Handler {
	var handler slog.Handler

	switch cfg.Format {
	case config.LogFormatText:
		handler = tint.NewHandler(w, &tint.Options{
			Level:       cfg.Level,
			AddSource:   cfg.AddSource,
			TimeFormat:  time.RFC3339,
			ReplaceAttr: highlightErrors,
		})
	default:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     cfg.Level,
			AddSource: cfg.AddSource,
		})
	}

	return newContextHandler(handler)
}

func highlightErrors(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindAny {
		if _, ok := a.Value.Any().(error); ok {
			return tint.Attr(errorColor, a)
		}
	}
	return a
}
