package config

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/phetools-curation-server/internal/domain"
)

// NewLogger builds the process logger. Unknown levels fall back to info.
// The MCP stdio transport owns stdout, so "stdout" is only honoured when
// asked for explicitly.
func NewLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	logger.SetOutput(outputFor(cfg.Output))
	return logger
}

func outputFor(name string) io.Writer {
	switch name {
	case "stdout":
		return os.Stdout
	case "discard":
		return io.Discard
	default:
		return os.Stderr
	}
}
