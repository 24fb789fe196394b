// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// zap has no level between Debug and Info, so verbose messages ride on
// DebugLevel and debug messages sit one step below it.
const (
	zapDebug   = zapcore.DebugLevel - 1
	zapVerbose = zapcore.DebugLevel
)

// Logger writes levelled messages to stderr (or a rotating log file)
// with optional timestamps and level prefixes.  Records are encoded by
// a zap console core; verbosity gating happens here so the zap core
// never filters.
type Logger struct {
	level      LogLevel
	mu         sync.RWMutex
	output     zapcore.WriteSyncer
	file       *lumberjack.Logger
	timestamps bool // if true, prepend HH:MM:SS.mmm timestamps
	zl         *zap.Logger
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug).
func NewLogger(verbosity int) *Logger {
	l := &Logger{
		level:      LogLevel(verbosity),
		output:     zapcore.Lock(os.Stderr),
		timestamps: verbosity >= 3, // auto-enable timestamps in debug mode
	}
	l.rebuild()
	return l
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) {
	l.mu.Lock()
	l.timestamps = on
	l.rebuild()
	l.mu.Unlock()
}

// SetOutput overrides the output writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	l.output = zapcore.Lock(zapcore.AddSync(w))
	l.rebuild()
	l.mu.Unlock()
}

// SetFile sends all output to a size-rotated log file.  Timestamps are
// always on for file output.
func (l *Logger) SetFile(path string) error {
	if path == "" {
		return fmt.Errorf("log file path is empty")
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // megabytes
		MaxBackups: 2,
		MaxAge:     15, // days
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close() //nolint:errcheck
	}
	l.file = lj
	l.output = zapcore.AddSync(lj)
	l.timestamps = true
	l.rebuild()
	return nil
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// Info prints when verbosity ≥ 1.  Prefixed with [INF].
func (l *Logger) Info(format string, args ...interface{}) {
	if l.level >= LogNormal {
		l.write(zapcore.InfoLevel, format, args...)
	}
}

// Warn prints when verbosity ≥ 1.  Prefixed with [WRN].
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.level >= LogNormal {
		l.write(zapcore.WarnLevel, format, args...)
	}
}

// Verbose prints when verbosity ≥ 2.  Prefixed with [VRB].
func (l *Logger) Verbose(format string, args ...interface{}) {
	if l.level >= LogVerbose {
		l.write(zapVerbose, format, args...)
	}
}

// Debug prints when verbosity ≥ 3.  Prefixed with [DBG].
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level >= LogDebug {
		l.write(zapDebug, format, args...)
	}
}

// Error always prints regardless of verbosity.  Prefixed with [ERR].
func (l *Logger) Error(format string, args ...interface{}) {
	l.write(zapcore.ErrorLevel, format, args...)
}

// Sync flushes buffered output.
func (l *Logger) Sync() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.zl.Sync()
}

// Close flushes and releases the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.zl.Sync() //nolint:errcheck
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.output = zapcore.Lock(os.Stderr)
	l.rebuild()
	return err
}

func (l *Logger) write(lvl zapcore.Level, format string, args ...interface{}) {
	l.mu.RLock()
	zl := l.zl
	l.mu.RUnlock()

	if ce := zl.Check(lvl, fmt.Sprintf(format, args...)); ce != nil {
		ce.Write()
	}
}

// rebuild swaps in a fresh zap core.  Callers hold l.mu.
func (l *Logger) rebuild() {
	encCfg := zapcore.EncoderConfig{
		MessageKey:       "msg",
		LevelKey:         "level",
		EncodeLevel:      encodeLevel,
		ConsoleSeparator: " ",
		LineEnding:       zapcore.DefaultLineEnding,
	}
	if l.timestamps {
		encCfg.TimeKey = "ts"
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		l.output,
		zap.LevelEnablerFunc(func(zapcore.Level) bool { return true }),
	)
	l.zl = zap.New(core)
}

func encodeLevel(lvl zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch lvl {
	case zapDebug:
		enc.AppendString("[DBG]")
	case zapVerbose:
		enc.AppendString("[VRB]")
	case zapcore.InfoLevel:
		enc.AppendString("[INF]")
	case zapcore.WarnLevel:
		enc.AppendString("[WRN]")
	default:
		enc.AppendString("[ERR]")
	}
}
