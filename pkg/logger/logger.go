package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

// InitLogger builds the process logger. An empty level falls back to LOG_LEVEL
// and then to debug/info depending on the environment.
func InitLogger(logLevel string, isDevelopment bool) *logrus.Logger {
	log := logrus.New()

	if logLevel == "" {
		logLevel = os.Getenv("LOG_LEVEL")
		if logLevel == "" {
			if isDevelopment {
				logLevel = "debug"
			} else {
				logLevel = "info"
			}
		}
	}

	if level, err := logrus.ParseLevel(strings.ToLower(logLevel)); err == nil {
		log.SetLevel(level)
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.WithField("invalid_level", logLevel).Warn("Invalid LOG_LEVEL, using INFO")
	}

	if !isDevelopment || strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	log.SetOutput(os.Stdout)

	Logger = log
	return log
}

// GetLogger returns the global logger instance
func GetLogger() *logrus.Logger {
	if Logger == nil {
		return InitLogger("info", false)
	}
	return Logger
}

func WithComponent(component string) *logrus.Entry {
	return GetLogger().WithField("component", component)
}

// WithMatch tags log lines with the fixture being predicted. A nil base
// uses the process logger.
func WithMatch(base logrus.FieldLogger, homeTeam, awayTeam string) *logrus.Entry {
	return orDefault(base).WithFields(logrus.Fields{
		"home_team": homeTeam,
		"away_team": awayTeam,
	})
}

func WithDataset(base logrus.FieldLogger, datasetID int) *logrus.Entry {
	return orDefault(base).WithField("dataset", datasetID)
}

// WithRequestContext creates a logger with request context
func WithRequestContext(base logrus.FieldLogger, requestID, clientIP string) *logrus.Entry {
	return orDefault(base).WithFields(logrus.Fields{
		"request_id": requestID,
		"client_ip":  clientIP,
	})
}

func orDefault(base logrus.FieldLogger) logrus.FieldLogger {
	if base == nil {
		return GetLogger()
	}
	return base
}
