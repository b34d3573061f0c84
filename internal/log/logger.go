// Package log provides structured logging for microprobe using zap.
package log

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with microprobe-specific helpers.
type Logger struct {
	*zap.Logger
	onTrace func(pc uint64, category, name, detail string) // trace callback for events
}

var (
	// L is the global logger instance.
	L    *Logger
	once sync.Once
)

// Init initializes the global logger with the given configuration.
// Safe to call multiple times; only the first call takes effect.
func Init(debug bool) {
	once.Do(func() {
		L = New(debug)
	})
}

// New creates a new Logger instance.
func New(debug bool) *Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}

	// Shorter timestamps in development
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Fallback to no-op if config fails
		logger = zap.NewNop()
	}

	return &Logger{Logger: logger}
}

// NewNop creates a no-op logger for testing.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// SetOnTrace sets the trace callback for harness events.
func (l *Logger) SetOnTrace(fn func(pc uint64, category, name, detail string)) {
	l.onTrace = fn
}

// Trace logs a harness event and calls the trace callback if set.
// This is the primary method for the emulator and harness to report activity.
func (l *Logger) Trace(pc uint64, category, name, detail string) {
	// Always call trace callback (for trace event collection)
	if l.onTrace != nil {
		l.onTrace(pc, category, name, detail)
	}

	// Log at debug level with structured fields
	l.Debug("event",
		zap.String("cat", category),
		zap.String("fn", name),
		zap.String("detail", detail),
		zap.Uint64("pc", pc),
	)
}

// TraceSimple logs a harness event without PC (uses 0).
func (l *Logger) TraceSimple(category, name, detail string) {
	l.Trace(0, category, name, detail)
}

// ProbeStart logs the beginning of a probe run.
func (l *Logger) ProbeStart(name, mode string) {
	l.Debug("probe start",
		zap.String("probe", name),
		zap.String("mode", mode),
	)
}

// ProbeResult logs the outcome of a probe run.
func (l *Logger) ProbeResult(name string, pass bool, detail string) {
	l.Info("probe result",
		zap.String("probe", name),
		zap.Bool("pass", pass),
		zap.String("detail", detail),
	)
}

// Bkpt reports a breakpoint trap raised by guest code. Routed through Trace
// so trap events reach the trace callback alongside calls.
func (l *Logger) Bkpt(pc uint64, imm uint32) {
	l.Trace(pc, "bkpt", "BKPT", fmt.Sprintf("imm=0x%x", imm))
}

// Semihost reports a semihosting call from guest code. The name is the
// operation mnemonic (SYS_WRITE0, SYS_EXIT, ...).
func (l *Logger) Semihost(pc uint64, name, detail string) {
	l.Trace(pc, "semihost", name, detail)
}

// WithCategory returns a logger with the category field preset.
func (l *Logger) WithCategory(category string) *Logger {
	return &Logger{
		Logger:  l.Logger.With(zap.String("cat", category)),
		onTrace: l.onTrace,
	}
}

// Hex formats a uint64 as a hex string for logging.
func Hex(addr uint64) string {
	return fmt.Sprintf("0x%x", addr)
}

// Field helpers for common patterns.

// Addr creates an address field.
func Addr(addr uint64) zap.Field {
	return zap.String("addr", Hex(addr))
}

// Size creates a size field.
func Size(size uint64) zap.Field {
	return zap.Uint64("size", size)
}

// Ptr creates a pointer field.
func Ptr(name string, ptr uint64) zap.Field {
	return zap.String(name, Hex(ptr))
}

// Fn creates a function name field.
func Fn(name string) zap.Field {
	return zap.String("fn", name)
}
