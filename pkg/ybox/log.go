package ybox

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the process-wide logger entry. Debug mode tees
// JSON-formatted records to "<dataDir>/ybox.log"; production mode only
// logs warnings and errors, to stderr, since (unlike a TUI) a ybox-* binary does not
// own the terminal and can freely write there.
func NewLogger(dataDir string, debug bool, version, commit, buildDate string) *logrus.Entry {
	var log *logrus.Logger
	if debug || os.Getenv("YBOX_DEBUG") == "TRUE" {
		log = newDevelopmentLogger(dataDir)
	} else {
		log = newProductionLogger()
	}

	return log.WithFields(logrus.Fields{
		"debug":     debug,
		"version":   version,
		"commit":    commit,
		"buildDate": buildDate,
	})
}

func getLogLevel() logrus.Level {
	strLevel := os.Getenv("YBOX_LOG_LEVEL")
	level, err := logrus.ParseLevel(strLevel)
	if err != nil {
		return logrus.DebugLevel
	}
	return level
}

func newDevelopmentLogger(dataDir string) *logrus.Logger {
	log := logrus.New()
	log.SetLevel(getLogLevel())
	log.Formatter = &logrus.JSONFormatter{}

	if dataDir == "" {
		log.SetOutput(os.Stderr)
		return log
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.SetOutput(os.Stderr)
		return log
	}

	file, err := os.OpenFile(filepath.Join(dataDir, "ybox.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		log.SetOutput(os.Stderr)
		return log
	}
	log.SetOutput(io.MultiWriter(os.Stderr, file))
	return log
}

func newProductionLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = os.Stderr
	log.SetLevel(logrus.WarnLevel)
	log.Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	return log
}
