package lightmapper

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// ZapLogger adapts a zap logger to Logger. The debug toggle flips an atomic
// level shared with the underlying core.
type ZapLogger struct {
	level zap.AtomicLevel
	sugar *zap.SugaredLogger
}

func NewZapLogger(base *zap.Logger, level zap.AtomicLevel) *ZapLogger {
	return &ZapLogger{
		level: level,
		sugar: base.Sugar(),
	}
}

// NewDefaultLogger builds a console logger named prefix. Production switches
// to zap's JSON encoder.
func NewDefaultLogger(prefix string, debug bool, production bool) (*ZapLogger, error) {
	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if debug {
		cfg.Level.SetLevel(zapcore.DebugLevel)
	}

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if prefix != "" {
		base = base.Named(prefix)
	}
	return NewZapLogger(base, cfg.Level), nil
}

func (l *ZapLogger) DebugEnabled() bool {
	return l.level.Enabled(zapcore.DebugLevel)
}

func (l *ZapLogger) SetDebug(enabled bool) {
	if enabled {
		l.level.SetLevel(zapcore.DebugLevel)
	} else {
		l.level.SetLevel(zapcore.InfoLevel)
	}
}

func (l *ZapLogger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *ZapLogger) Infof(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *ZapLogger) Warnf(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *ZapLogger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }

// Sync flushes buffered entries; call before exit.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}

// LoggingModule installs a zap-backed logger as a resource.
type LoggingModule struct {
	Prefix     string
	Debug      bool
	Production bool
}

func (m LoggingModule) Install(app *App, cmd *Commands) {
	logger, err := NewDefaultLogger(m.Prefix, m.Debug, m.Production)
	if err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	app.addResources(logger)
}

func NewNopLogger() Logger {
	return NewZapLogger(zap.NewNop(), zap.NewAtomicLevelAt(zapcore.InfoLevel))
}

// Logger returns the first Logger resource if present, otherwise a no-op logger.
// Safe to call at any time; never returns nil.
func (app *App) Logger() Logger {
	if app == nil {
		return NewNopLogger()
	}
	for _, r := range app.resources {
		if l, ok := r.(Logger); ok {
			return l
		}
	}
	return NewNopLogger()
}
