package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Setup configures the standard logrus logger and returns it.
// level: "debug", "info", "warn", "error" (case-insensitive; anything else is info).
// format: "json" selects the JSON formatter, anything else the text formatter.
func Setup(level, format string) *logrus.Logger {
	return setup(os.Stdout, level, format)
}

func setup(out io.Writer, level, format string) *logrus.Logger {
	logger := logrus.StandardLogger()
	logger.SetOutput(out)
	logger.SetLevel(parseLevel(level))

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006/01/02 15:04:05",
		})
	}
	return logger
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
