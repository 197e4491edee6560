package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"mapsjob/internal/config"
)

// New returns a logger configured from cfg. The standard logrus logger is left untouched.
func New(cfg config.LogConfig, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	if err := apply(logger, cfg, out); err != nil {
		return nil, err
	}
	return logger, nil
}

func apply(logger *logrus.Logger, cfg config.LogConfig, out io.Writer) error {
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unsupported log format: %s", cfg.Format)
	}

	if out != nil {
		logger.SetOutput(out)
	}
	return nil
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
