package stm

import (
	"log/slog"
)

// Logger receives the runtime's diagnostics: defects at error level, long
// rerun streaks at warn level and cancelled waits at info level. Arguments
// are alternating keys and values. *slog.Logger satisfies it, and package
// logger adapts zap and logrus.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
}

var _ Logger = (*slog.Logger)(nil)

// DiscardLogger drops everything. It is the default.
type DiscardLogger struct{}

func (DiscardLogger) Error(string, ...any) {}

func (DiscardLogger) Warn(string, ...any) {}

func (DiscardLogger) Info(string, ...any) {}
