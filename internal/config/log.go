package config

import (
	"fmt"
	"log/slog"
	"strings"
)

type Log struct {
	Format    LogFormat  `env:"LOG_FORMAT" envDefault:"JSON"`
	Level     slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	AddSource bool       `env:"LOG_ADD_SOURCE" envDefault:"false"`
}

// LogFormat selects the log encoding: JSON for machines, TEXT for a terminal.
type LogFormat string

const (
	LogFormatJSON LogFormat = "JSON"
	LogFormatText LogFormat = "TEXT"
)

// UnmarshalText implements [encoding.TextUnmarshaler]. Matching is case-insensitive.
func (f *LogFormat) UnmarshalText(text []byte) error {
	switch format := LogFormat(strings.ToUpper(strings.TrimSpace(string(text)))); format {
	case LogFormatJSON, LogFormatText:
		*f = format
		return nil
	default:
		return fmt.Errorf("unknown log format: %s", text)
	}
}
