package app

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"

	"ember/hal"
)

// lineWriter feeds newline terminated log records to a hal.Logger.
type lineWriter struct {
	l hal.Logger
}

func (w lineWriter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		line := p
		if i := bytes.IndexByte(p, '\n'); i >= 0 {
			line, p = p[:i], p[i+1:]
		} else {
			p = nil
		}
		if len(line) != 0 {
			w.l.WriteLineBytes(line)
		}
	}
	return n, nil
}

func newLogger(h hal.HAL, level logiface.Level) *logiface.Logger[logiface.Event] {
	l := h.Logger()
	if l == nil {
		return nil
	}
	return stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(lineWriter{l: l}),
			stumpy.WithTimeField(``),
		),
		stumpy.L.WithLevel(level),
	).Logger()
}

var levels = map[string]logiface.Level{
	"disabled": logiface.LevelDisabled,
	"emerg":    logiface.LevelEmergency,
	"alert":    logiface.LevelAlert,
	"crit":     logiface.LevelCritical,
	"err":      logiface.LevelError,
	"error":    logiface.LevelError,
	"warning":  logiface.LevelWarning,
	"warn":     logiface.LevelWarning,
	"notice":   logiface.LevelNotice,
	"info":     logiface.LevelInformational,
	"debug":    logiface.LevelDebug,
	"trace":    logiface.LevelTrace,
}

// ParseLevel maps a syslog keyword to a log level.
func ParseLevel(s string) (logiface.Level, error) {
	if l, ok := levels[strings.ToLower(s)]; ok {
		return l, nil
	}
	return logiface.LevelDisabled, fmt.Errorf("unknown log level %q", s)
}
