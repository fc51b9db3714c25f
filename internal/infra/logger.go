package infra

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/umalmyha/customer-records/internal/config"
)

const (
	logFormatText = "text"
	logFormatJSON = "json"
)

// Logger builds logrus logger writing to stdout
func Logger(cfg config.LogCfg) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level - %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetLevel(level)

	switch cfg.Format {
	case logFormatText:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case logFormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return logger, nil
}
