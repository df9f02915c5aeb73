package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pixil98/go-errors"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
	defaultMaxAgeDays = 7
)

// Config selects the log level and an optional rotating JSON file alongside
// the console output.
type Config struct {
	Level      string `json:"level" env:"LEVEL"`
	File       string `json:"file" env:"FILE"`
	MaxSizeMB  int    `json:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `json:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `json:"max_age_days" env:"MAX_AGE_DAYS"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	if _, err := c.level(); err != nil {
		el.Add(fmt.Errorf("parsing level: %w", err))
	}
	if c.MaxSizeMB < 0 {
		el.Add(fmt.Errorf("max_size_mb must not be negative"))
	}
	if c.MaxBackups < 0 {
		el.Add(fmt.Errorf("max_backups must not be negative"))
	}
	if c.MaxAgeDays < 0 {
		el.Add(fmt.Errorf("max_age_days must not be negative"))
	}

	return el.Err()
}

func (c *Config) level() (zapcore.Level, error) {
	if c.Level == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(c.Level)
}

func (c *Config) rotator() *lumberjack.Logger {
	lj := &lumberjack.Logger{
		Filename:   c.File,
		MaxSize:    c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAgeDays,
	}
	if lj.MaxSize == 0 {
		lj.MaxSize = defaultMaxSizeMB
	}
	if lj.MaxBackups == 0 {
		lj.MaxBackups = defaultMaxBackups
	}
	if lj.MaxAge == 0 {
		lj.MaxAge = defaultMaxAgeDays
	}
	return lj
}

// New builds a logger writing human readable lines to console and, when a
// file is configured, JSON lines to a rotating file. The returned func
// flushes and closes the file.
func New(cfg Config, console io.Writer) (*slog.Logger, func() error, error) {
	lvl, err := cfg.level()
	if err != nil {
		return nil, nil, fmt.Errorf("parsing level: %w", err)
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(console), lvl),
	}
	closer := func() error { return nil }

	if cfg.File != "" {
		lj := cfg.rotator()
		fileCfg := encCfg
		fileCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(lj), lvl)
		cores = append(cores, fileCore)
		closer = func() error {
			if err := fileCore.Sync(); err != nil {
				return err
			}
			return lj.Close()
		}
	}

	core := zapcore.NewTee(cores...)
	return slog.New(zapslog.NewHandler(core, zapslog.WithCaller(true))), closer, nil
}

// Setup installs the configured logger as the slog default.
func Setup(cfg Config) (func() error, error) {
	logger, closer, err := New(cfg, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return closer, nil
}
