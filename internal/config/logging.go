package config

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// SetupLogging configures logger to write timestamped text to stderr and,
// when logFile is set, to that file as well. It returns the log file handle
// (caller must close it) or nil if no file was opened.
func SetupLogging(logger *logrus.Logger, level, logFile string, stderr io.Writer) (*os.File, error) {
	writers := []io.Writer{stderr}

	var f *os.File
	if logFile != "" {
		var err error
		f, err = os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, &ConfigurationError{Field: "log_file", Reason: err.Error()}
		}
		writers = append(writers, f)
	}

	if len(writers) == 1 {
		logger.SetOutput(writers[0])
	} else {
		logger.SetOutput(io.MultiWriter(writers...))
	}

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   f != nil,
	})

	lvl, ok := parseLogLevel(level)
	logger.SetLevel(lvl)
	if !ok {
		logger.Warnf("Unknown log level %q, using %s", level, lvl)
	}

	return f, nil
}

// parseLogLevel converts a level name to a logrus level. Unknown names map
// to warn.
func parseLogLevel(level string) (logrus.Level, bool) {
	if strings.TrimSpace(level) == "" {
		return logrus.WarnLevel, true
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.WarnLevel, false
	}
	return lvl, true
}
