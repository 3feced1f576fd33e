package utils

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a zap logger. When debug is true, uses development config
// (human-readable, debug level); otherwise uses production config (JSON, info level).
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// WarnCounter counts warning-or-worse entries written through loggers it wraps.
type WarnCounter struct {
	n atomic.Int64
}

// Wrap returns a child of l that also counts every Warn, Error, or worse entry,
// whatever level l itself is enabled for.
func (c *WarnCounter) Wrap(l *zap.Logger) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return l.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, countingCore{LevelEnabler: zapcore.WarnLevel, n: &c.n})
	}))
}

// Count returns the number of warnings seen so far.
func (c *WarnCounter) Count() int {
	return int(c.n.Load())
}

type countingCore struct {
	zapcore.LevelEnabler
	n *atomic.Int64
}

func (c countingCore) With([]zapcore.Field) zapcore.Core { return c }

func (c countingCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c countingCore) Write(zapcore.Entry, []zapcore.Field) error {
	c.n.Add(1)
	return nil
}

func (c countingCore) Sync() error { return nil }
