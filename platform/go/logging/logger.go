package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the encoder and minimum level for NewLogger.
type Config struct {
	Component string // "api-server", "cli"
	Level     string // debug, info, warn, error; empty means info
	// Console writes colored, human-readable lines to stderr instead of JSON to stdout.
	Console bool
}

// NewLogger builds a zap logger whose JSON output uses Cloud Logging field names
// (severity, message, timestamp).
func NewLogger(cfg Config) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var core zapcore.Core
	if cfg.Console {
		enc := baseEncoderConfig()
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stderr), level)
	} else {
		core = zapcore.NewCore(zapcore.NewJSONEncoder(baseEncoderConfig()), zapcore.Lock(os.Stdout), level)
	}

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if cfg.Component != "" {
		logger = logger.With(zap.String("component", cfg.Component))
	}
	return logger, nil
}

// ParseLevel accepts zap level names in any case; "warning" is an alias for warn.
func ParseLevel(raw string) (zap.AtomicLevel, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "":
		return level, nil
	case "warning":
		raw = "warn"
	}
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return level, err
	}
	return level, nil
}

func baseEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "severity",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeLevel:    severityEncoder,
	}
}

// severityEncoder maps zap levels onto Cloud Logging severities.
func severityEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch l {
	case zapcore.WarnLevel:
		enc.AppendString("WARNING")
	case zapcore.DPanicLevel, zapcore.PanicLevel:
		enc.AppendString("ALERT")
	case zapcore.FatalLevel:
		enc.AppendString("CRITICAL")
	default:
		enc.AppendString(strings.ToUpper(l.String()))
	}
}
