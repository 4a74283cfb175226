// Package logging builds the diagnostic logger. User-facing messages go
// through internal/ui; this logger only carries debug tracing.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// New builds a console logger on stderr at the given level. Unknown
// levels fall back to warn.
func New(level string, debug bool) *zap.Logger {
	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	if debug {
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zapConfig.Encoding = "console"
	zapConfig.DisableStacktrace = true
	zapConfig.OutputPaths = []string{"stderr"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// ParseLevel converts a level name to a zap level, defaulting to warn.
func ParseLevel(levelStr string) zapcore.Level {
	levelStr = strings.ToLower(strings.TrimSpace(levelStr))
	if levelStr == "" {
		return zapcore.WarnLevel
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		return zapcore.WarnLevel
	}
	return level
}
