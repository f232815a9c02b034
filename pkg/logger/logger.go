package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the leveled key/value logger used across the service.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
}

type logrusLogger struct {
	log *logrus.Logger
}

// NewLogger creates a JSON-formatted logger with the specified level.
func NewLogger(level string) Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{})

	switch strings.ToLower(level) {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	return &logrusLogger{log: log}
}

func (l *logrusLogger) Debug(msg string, keyvals ...interface{}) {
	l.log.WithFields(fields(keyvals...)).Debug(msg)
}

func (l *logrusLogger) Info(msg string, keyvals ...interface{}) {
	l.log.WithFields(fields(keyvals...)).Info(msg)
}

func (l *logrusLogger) Warn(msg string, keyvals ...interface{}) {
	l.log.WithFields(fields(keyvals...)).Warn(msg)
}

func (l *logrusLogger) Error(msg string, keyvals ...interface{}) {
	l.log.WithFields(fields(keyvals...)).Error(msg)
}

// fields converts alternating key/value pairs into logrus fields. A trailing
// key with no value is recorded as "missing".
func fields(keyvals ...interface{}) logrus.Fields {
	f := make(logrus.Fields, len(keyvals)/2)

	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)

		if !ok {
			continue
		}

		if i+1 < len(keyvals) {
			f[key] = keyvals[i+1]
		} else {
			f[key] = "missing"
		}
	}

	return f
}
