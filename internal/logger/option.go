package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// leveledCore overrides the enabled level of a wrapped core.
type leveledCore struct {
	zapcore.Core

	// level is the minimum log level this core lets through.
	level zapcore.Level
}

// Enabled reports whether both the override and the wrapped core accept l.
func (c *leveledCore) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l) && c.Core.Enabled(l)
}

// Check adds the core to a checked entry when the entry level is enabled.
//
//nolint:gocritic // AddCore requires ent to be passed by value.
func (c *leveledCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

// With keeps the level override on derived cores.
//
//nolint:ireturn,nolintlint // Returning zapcore.Core is intended for zap integration.
func (c *leveledCore) With(fields []zapcore.Field) zapcore.Core {
	return &leveledCore{
		Core:  c.Core.With(fields),
		level: c.level,
	}
}

// WithMinLevel raises the minimum level of a derived logger without touching
// the global level. Used to keep chatty third-party libraries quiet.
//
//nolint:ireturn,nolintlint // Returning zap.Option is intended for zap integration.
func WithMinLevel(lvl zapcore.Level) zap.Option {
	return zap.WrapCore(
		func(core zapcore.Core) zapcore.Core {
			return &leveledCore{Core: core, level: lvl}
		})
}
