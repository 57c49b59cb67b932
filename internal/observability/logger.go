// Package observability holds the process-wide loggers.
package observability

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logging profiles.
const (
	ProfileStructured = "structured"
	ProfileConsole    = "console"
)

var (
	// CLILogger is used by commands. It writes to stderr.
	CLILogger = zap.NewNop()
	// ServerLogger is used by the HTTP server and background tasks.
	ServerLogger = zap.NewNop()
)

// NewLogger builds a zap logger. The structured profile emits JSON, the
// console profile a human readable encoding with colored levels.
func NewLogger(level, profile, service string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch strings.ToLower(profile) {
	case "", ProfileStructured, "prod":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case ProfileConsole, "dev":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown logging profile %q", profile)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if service != "" {
		logger = logger.With(zap.String("service", service))
	}
	return logger, nil
}

// InitCLILogger replaces CLILogger.
func InitCLILogger(level, profile string) error {
	l, err := NewLogger(level, profile, "")
	if err != nil {
		return err
	}
	CLILogger = l
	return nil
}

// InitServerLogger replaces ServerLogger.
func InitServerLogger(level, profile, service string) error {
	l, err := NewLogger(level, profile, service)
	if err != nil {
		return err
	}
	ServerLogger = l
	return nil
}

// Sync flushes both loggers.
func Sync() {
	_ = CLILogger.Sync()
	_ = ServerLogger.Sync()
}
