package logging

import (
	"errors"
	"net/http"
	"os"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// rootName prefixes every logger name
const rootName = "sessiongate"

// Logger is the process logger. Components take the embedded *zap.Logger
// and name themselves with Named.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// Config selects the level and encoding of the process logger
type Config struct {
	Level       string // debug, info, warn or error; empty keeps the mode default
	Development bool   // console output with colours and stack traces on warn
	OutputPaths []string
}

// New builds a logger. Production mode writes JSON to stdout, development
// mode writes coloured console lines at debug level.
func New(cfg Config) (*Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.MessageKey = "message"
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.Sampling = nil

	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zapCfg.Level = level
	}
	if len(cfg.OutputPaths) > 0 {
		zapCfg.OutputPaths = cfg.OutputPaths
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: logger.Named(rootName), level: zapCfg.Level}, nil
}

// NewFromSettings builds the logger from the LOG_LEVEL and LOG_DEV settings.
// An unusable configuration yields a no-op logger rather than failing
// startup.
func NewFromSettings(level string, development bool) *Logger {
	logger, err := New(Config{Level: level, Development: development})
	if err != nil {
		return NewNop()
	}
	return logger
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop(), level: zap.NewAtomicLevel()}
}

// LevelHandler serves the current level on GET and changes it on PUT with a
// body like {"level":"debug"}
func (l *Logger) LevelHandler() http.Handler {
	return l.level
}

// Sync flushes buffered entries. Syncing a terminal or pipe fails with
// EINVAL or ENOTTY on Linux; those are ignored.
func (l *Logger) Sync() error {
	err := l.Logger.Sync()
	switch {
	case err == nil,
		errors.Is(err, syscall.EINVAL),
		errors.Is(err, syscall.ENOTTY),
		errors.Is(err, os.ErrInvalid):
		return nil
	}
	return err
}
