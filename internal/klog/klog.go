// Package klog wires the kernel's structured logging on top of zap,
// the way jra3-system-agent's collectors and perkeep-perkeep wire zap
// into their service trees.
package klog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide kernel log, constructed once by New and
// threaded explicitly from there rather than referenced as a hidden
// global from every package.
type Logger struct {
	z *zap.Logger
}

// New builds a Logger at the given level, writing to the UART-equivalent
// sink (stderr in the hosted build).
func New(level zapcore.Level) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	z, err := cfg.Build()
	if err != nil {
		z = zap.NewNop()
	}
	return &Logger{z: z}
}

// Nop returns a Logger that discards everything, for tests.
func Nop() *Logger {
	return &Logger{z: zap.NewNop()}
}

// With returns a child logger carrying the given fields on every line,
// mirroring how the teacher tags each UART line with a subsystem prefix.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{z: l.z.With(fields...)}
}

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.z.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.z.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.z.Error(msg, fields...) }

// Sync flushes any buffered log lines.
func (l *Logger) Sync() error {
	return l.z.Sync()
}
