package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapio"
)

// New builds the application logger. Debug switches to debug level and a
// console encoder.
func New(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// LineWriter returns a writer that logs every line written to it. Close
// flushes a trailing partial line.
func LineWriter(log *zap.Logger, level zapcore.Level) *zapio.Writer {
	return &zapio.Writer{Log: log, Level: level}
}
