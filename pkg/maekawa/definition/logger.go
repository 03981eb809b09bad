package definition

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the logging surface the protocol core depends on. It is
// intentionally narrow - only what the arbiter, requester and
// transport actually call - mirroring the method set of
// chaitanyaphalak-go-mcast/pkg/mcast/definition.DefaultLogger, but
// backed by logrus's structured, leveled logger instead of the
// standard library's log.Logger.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	ToggleDebug(enabled bool)
}

// DefaultLogger is the Logger used when a caller doesn't supply its
// own implementation.
type DefaultLogger struct {
	base  *logrus.Logger
	entry *logrus.Entry
}

// NewDefaultLogger builds a DefaultLogger writing to stderr in text
// format at info level.
func NewDefaultLogger() *DefaultLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &DefaultLogger{base: l, entry: logrus.NewEntry(l)}
}

// WithPeer returns a DefaultLogger whose output lines are tagged with
// the given peer id. Level changes made through ToggleDebug on either
// the parent or the child affect both, since they share the
// underlying *logrus.Logger.
func (l *DefaultLogger) WithPeer(id interface{}) *DefaultLogger {
	return &DefaultLogger{base: l.base, entry: l.entry.WithField("peer", id)}
}

func (l *DefaultLogger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *DefaultLogger) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

func (l *DefaultLogger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

func (l *DefaultLogger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *DefaultLogger) ToggleDebug(enabled bool) {
	if enabled {
		l.base.SetLevel(logrus.DebugLevel)
		return
	}
	l.base.SetLevel(logrus.InfoLevel)
}
