package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the process logger.
type Options struct {
	Enabled bool
	Level   string // debug|info|warn|error
	File    string
	Console bool
	JSON    bool
}

var (
	sugar = zap.NewNop().Sugar()
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init replaces the process logger. A disabled logger discards everything.
func Init(opts Options) error {
	if !opts.Enabled {
		sugar = zap.NewNop().Sugar()
		return nil
	}

	var sinks []zapcore.WriteSyncer
	if opts.File != "" {
		f, err := openLogFile(opts.File)
		if err != nil {
			return err
		}
		sinks = append(sinks, zapcore.AddSync(f))
	}
	if opts.Console || len(sinks) == 0 {
		sinks = append(sinks, zapcore.Lock(os.Stdout))
	}

	level.SetLevel(ParseLevel(opts.Level))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	var enc zapcore.Encoder
	if opts.JSON {
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.NewMultiWriteSyncer(sinks...), level)
	sugar = zap.New(core).Sugar()
	return nil
}

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// ParseLevel maps a level name to a zap level. Unknown names mean info.
func ParseLevel(name string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

// SetLevel changes the level of the running logger.
func SetLevel(name string) {
	level.SetLevel(ParseLevel(name))
}

// Sync flushes buffered log entries.
func Sync() {
	_ = sugar.Sync()
}

// Debugf logs a debug message.
func Debugf(format string, args ...interface{}) { sugar.Debugf(format, args...) }

// Infof logs an info message.
func Infof(format string, args ...interface{}) { sugar.Infof(format, args...) }

// Warnf logs a warning.
func Warnf(format string, args ...interface{}) { sugar.Warnf(format, args...) }

// Errorf logs an error message.
func Errorf(format string, args ...interface{}) { sugar.Errorf(format, args...) }
