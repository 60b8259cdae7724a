// Package log provides structured logging for the proxy using zap.
//
// The proxy runs inside someone else's process, so the default level is
// warn and output goes to stderr; UPD_DEBUG=1 switches to the development
// config. L starts as a no-op logger and is never nil.
package log

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with proxy-specific helpers.
type Logger struct {
	*zap.Logger
}

var (
	// L is the global logger instance.
	L    = NewNop()
	once sync.Once
)

// Init initializes the global logger. Safe to call multiple times; only
// the first call takes effect.
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

// SlotResolve logs a resolved export slot.
func (l *Logger) SlotResolve(key string, addr uint64, method string) {
	l.Debug("resolved",
		zap.String("slot", key),
		Addr(addr),
		zap.String("via", method),
	)
}

// SlotAbsent logs a slot the real library does not implement.
func (l *Logger) SlotAbsent(key string) {
	l.Debug("absent",
		zap.String("slot", key),
	)
}

// GateFallback logs a gate answering with the failure sentinel.
func (l *Logger) GateFallback(key string, sentinel uint64) {
	l.Debug("sentinel",
		zap.String("slot", key),
		zap.Uint64("ret", sentinel),
	)
}

// Located logs the chosen original library.
func (l *Logger) Located(path string, handle uint64) {
	l.Info("located",
		zap.String("lib", path),
		Addr(handle),
	)
}

// Published logs the atomic transition to Ready.
func (l *Logger) Published(resolved, total int) {
	l.Info("ready",
		zap.Int("resolved", resolved),
		zap.Int("slots", total),
	)
}

// Hex formats a uint64 as hex string for logging.
func Hex(addr uint64) string {
	return "0x" + hexString(addr)
}

func hexString(v uint64) string {
	const digits = "0123456789abcdef"
	if v == 0 {
		return "0"
	}
	buf := make([]byte, 16)
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf[i:])
}

// Field helpers for common patterns.

// Addr creates an address field.
func Addr(addr uint64) zap.Field {
	return zap.String("addr", Hex(addr))
}

// Lib creates a library path field.
func Lib(path string) zap.Field {
	return zap.String("lib", path)
}

// Fn creates a function name field.
func Fn(name string) zap.Field {
	return zap.String("fn", name)
}

// Err creates an error field.
func Err(err error) zap.Field {
	return zap.Error(err)
}
