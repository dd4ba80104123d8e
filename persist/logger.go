package persist

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is a file-backed structured logger. It writes a STARTUP marker
// when opened and a SHUTDOWN marker when closed, the same bracketing the
// teacher's plain-text file logger uses, re-expressed over logrus so
// every log line in the repo (connection handler, session, world) shares
// one formatter.
type Logger struct {
	*logrus.Entry
	file *os.File
}

// NewLogger opens (creating if necessary) the file at path and returns a
// Logger that writes to it, having just recorded a STARTUP line.
func NewLogger(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	base := logrus.New()
	base.SetOutput(f)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	l := &Logger{Entry: logrus.NewEntry(base), file: f}
	l.Entry.Info("STARTUP: logger initialized")
	return l, nil
}

// Writer exposes the logger's underlying file for components that want a
// plain io.Writer rather than a structured entry.
func (l *Logger) Writer() io.Writer { return l.file }

// Close records a SHUTDOWN line and closes the underlying file.
func (l *Logger) Close() error {
	l.Entry.Info("SHUTDOWN: logger closing")
	return l.file.Close()
}
