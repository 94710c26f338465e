// Package logger provides the printf-style logging wrapper shared by every
// memory-engine component, tagged with a bracketed component name the way
// the rest of the codebase logs ("[repository] ...", "[watch] ...").
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var std = newDefault()

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetOutput redirects the default logger's output.
func SetOutput(w io.Writer) { std.SetOutput(w) }

// SetLevel parses and applies a logrus level name ("debug", "info", ...).
func SetLevel(level string) error {
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	std.SetLevel(lv)
	return nil
}

// Tagged returns a component-scoped logger whose calls are prefixed with
// "[tag] ". Components hold one of these rather than calling the package
// functions directly so the tag isn't repeated at every call site.
type Tagged struct {
	tag string
}

// For builds a Tagged logger for the given component name.
func For(tag string) *Tagged { return &Tagged{tag: tag} }

func (t *Tagged) Debug(format string, args ...any) { std.Debugf("["+t.tag+"] "+format, args...) }
func (t *Tagged) Info(format string, args ...any)  { std.Infof("[" + t.tag + "] " + format, args...) }
func (t *Tagged) Warn(format string, args ...any)  { std.Warnf("[" + t.tag + "] " + format, args...) }
func (t *Tagged) Error(format string, args ...any) { std.Errorf("[" + t.tag + "] " + format, args...) }

// Debug logs at debug level against the default (untagged) logger.
func Debug(format string, args ...any) { std.Debugf(format, args...) }

// Info logs at info level against the default (untagged) logger.
func Info(format string, args ...any) { std.Infof(format, args...) }

// Warn logs at warn level against the default (untagged) logger.
func Warn(format string, args ...any) { std.Warnf(format, args...) }

// Error logs at error level against the default (untagged) logger.
func Error(format string, args ...any) { std.Errorf(format, args...) }
