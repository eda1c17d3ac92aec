package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a textual log level as found in config files.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Format selects the encoder: "json" for production, anything else for
// human-readable console output.
type Format string

const (
	JSONFormat    Format = "json"
	ConsoleFormat Format = "console"
)

// New builds a zap logger at the given level.
func New(level Level, format Format) (*zap.Logger, error) {
	logger, err := buildConfig(level, format).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

func buildConfig(level Level, format Format) zap.Config {
	var cfg zap.Config
	if Format(strings.ToLower(string(format))) == JSONFormat {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(ToZapLevel(level))
	return cfg
}

// ToZapLevel converts level, defaulting to info for unknown values.
func ToZapLevel(level Level) zapcore.Level {
	switch Level(strings.ToLower(string(level))) {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel, "warning":
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Valid reports whether level is one of the recognised names.
func (l Level) Valid() bool {
	switch Level(strings.ToLower(string(l))) {
	case DebugLevel, InfoLevel, WarnLevel, "warning", ErrorLevel:
		return true
	}
	return false
}
