package store

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// badgerLogger routes badger's own logging through charmbracelet/log.
type badgerLogger struct {
	*log.Logger
}

func newBadgerLogger() badgerLogger {
	l := log.NewWithOptions(os.Stderr, log.Options{Prefix: "badger"})
	l.SetLevel(log.WarnLevel)
	return badgerLogger{l}
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.Logger.Errorf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Logger.Warnf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.Logger.Infof(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.Logger.Debugf(strings.TrimSpace(format), args...)
}
