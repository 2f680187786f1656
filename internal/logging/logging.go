// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Params controls logger setup.
type Params struct {
	Level      string
	FormatJSON bool
	// FileName enables rotated file output in addition to stdout.
	FileName string
	Service  string
}

// Setup configures the standard logrus logger and returns an entry tagged with the
// service name.
func Setup(params Params) *logrus.Entry {
	return configure(logrus.StandardLogger(), params, os.Stdout)
}

func configure(logger *logrus.Logger, params Params, stdout io.Writer) *logrus.Entry {
	if params.FormatJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logger.SetLevel(Level(params.Level))

	if params.FileName == "" {
		logger.SetOutput(stdout)
	} else {
		fileName := params.FileName
		if !strings.HasSuffix(fileName, ".log") {
			fileName += ".log"
		}
		logger.SetOutput(io.MultiWriter(stdout, &lumberjack.Logger{
			Filename:   fileName,
			MaxSize:    50, // megabytes
			MaxBackups: 10,
			Compress:   true,
		}))
	}

	entry := logrus.NewEntry(logger)
	if params.Service != "" {
		entry = entry.WithField("service", params.Service)
	}
	return entry
}

// Level parses a level name, defaulting to info.
func Level(name string) logrus.Level {
	level, err := logrus.ParseLevel(strings.TrimSpace(name))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
