package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sanspareilsmyn/factorlens/internal/config"
)

var ErrNoOutputs = errors.New("no logging outputs configured (neither console nor file enabled)")

// NewLogger builds a zap logger from cfg. Console output sends warnings and
// below to stdout and errors to stderr; file output is JSON rotated by
// lumberjack. Both may be active at once.
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARN: %v, defaulting to INFO level\n", err)
		level = zapcore.InfoLevel
	}

	isConsole := strings.ToLower(cfg.Format) == "console"
	isDevelopment := level == zapcore.DebugLevel || isConsole

	var cores []zapcore.Core
	if isConsole {
		cores = append(cores, consoleCores(level, zapcore.Lock(os.Stdout), zapcore.Lock(os.Stderr))...)
	}
	if cfg.FileLoggingEnabled {
		core, err := fileCore(cfg, level)
		if err != nil {
			return nil, err
		}
		cores = append(cores, core)
	}
	if len(cores) == 0 {
		return nil, ErrNoOutputs
	}

	logger := zap.New(zapcore.NewTee(cores...), options(isDevelopment)...)
	logger.Debug("Zap logger constructed",
		zap.String("final_level", level.String()),
		zap.String("format", cfg.Format),
		zap.Bool("file_logging_enabled", cfg.FileLoggingEnabled),
		zap.String("file_path", filepath.Join(cfg.Directory, cfg.Filename)),
		zap.Bool("development_mode", isDevelopment),
	)
	return logger, nil
}

// consoleCores splits output by level: below error to out, error and above to errOut.
func consoleCores(level zapcore.Level, out, errOut zapcore.WriteSyncer) []zapcore.Core {
	encoder := buildEncoder(true)
	low := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= level && lvl < zapcore.ErrorLevel
	})
	high := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= level && lvl >= zapcore.ErrorLevel
	})
	return []zapcore.Core{
		zapcore.NewCore(encoder, out, low),
		zapcore.NewCore(encoder, errOut, high),
	}
}

func fileCore(cfg config.LogConfig, level zapcore.Level) (zapcore.Core, error) {
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory '%s': %w", cfg.Directory, err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Directory, cfg.Filename),
		MaxSize:    cfg.MaxSize,    // megabytes
		MaxBackups: cfg.MaxBackups, // files
		MaxAge:     cfg.MaxAge,     // days
		Compress:   cfg.Compress,
	}
	return zapcore.NewCore(buildEncoder(false), zapcore.AddSync(rotator), level), nil
}

func options(isDevelopment bool) []zap.Option {
	opts := []zap.Option{zap.AddCaller()}
	if isDevelopment {
		return append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	}
	return append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
}

func parseLevel(levelStr string) (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(levelStr))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level '%s'", levelStr)
	}
	return level, nil
}

func buildEncoder(useConsoleStyle bool) zapcore.Encoder {
	if useConsoleStyle {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(encoderConfig)
}
