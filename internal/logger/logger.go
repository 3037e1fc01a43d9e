// Package logger builds the zap loggers used across the gateway.
//
// Level and format come from LOGGING_LEVEL (DEBUG, INFO, WARN, ERROR) and
// LOGGING_FORMAT (CONSOLE, JSON). Components log through For, which returns
// a named sugared logger.
package logger

import (
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format is an output encoding.
type Format string

const (
	FormatConsole Format = "CONSOLE"
	FormatJSON    Format = "JSON"
)

// Component names passed to For.
const (
	ComponentCLI          = "cli"
	ComponentSelector     = "selector"
	ComponentOrchestrator = "orchestrator"
	ComponentLegacy       = "legacy"
	ComponentDataAPI      = "dataapi"
	ComponentSQL          = "sqldb"
	ComponentConfig       = "config"
	ComponentHarness      = "harness"
)

var initOnce sync.Once

// ParseLevel maps a level name to a zap level. Unknown names are INFO.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05 MST"))
}

// New creates a logger writing to stderr. Stdout is left to command output.
func New(level string, format Format) *zap.Logger {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if format == FormatJSON {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.EncodeTime = timeEncoder
		cfg.ConsoleSeparator = " | "
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), zap.NewAtomicLevelAt(ParseLevel(level)))
	return zap.New(core, zap.AddCaller())
}

// Initialize installs the global logger from the environment. Later calls
// are no-ops.
func Initialize() {
	initOnce.Do(func() {
		format := Format(strings.ToUpper(os.Getenv("LOGGING_FORMAT")))
		if format != FormatJSON {
			format = FormatConsole
		}
		level := os.Getenv("LOGGING_LEVEL")
		if level == "" {
			level = "WARN"
		}
		zap.ReplaceGlobals(New(level, format))
	})
}

// For returns a sugared logger named after component.
func For(component string) *zap.SugaredLogger {
	Initialize()
	return zap.L().Named(component).Sugar()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return zap.NewNop().Sugar()
	}
	return l
}
