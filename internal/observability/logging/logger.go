// Package logging builds the structured loggers the binaries hand to every component.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

// Options selects where and how a service logs. Zero values mean JSON at
// info level on stdout.
type Options struct {
	Service string
	Level   string
	Format  string
	Writer  io.Writer
}

// New returns a logger that tags every record with the service name.
func New(o Options) *slog.Logger {
	w := o.Writer
	if w == nil {
		w = os.Stdout
	}
	ho := &slog.HandlerOptions{Level: ParseLevel(o.Level)}

	var h slog.Handler
	if strings.EqualFold(strings.TrimSpace(o.Format), FormatText) {
		h = slog.NewTextHandler(w, ho)
	} else {
		h = slog.NewJSONHandler(w, ho)
	}
	if o.Service == "" {
		return slog.New(h)
	}
	return slog.New(h).With("service", o.Service)
}

func NewJSONLogger(service, level string) *slog.Logger {
	return New(Options{Service: service, Level: level})
}

// ParseLevel accepts slog level names ("debug", "warn", "error+2") plus
// "warning". Anything else is info.
func ParseLevel(level string) slog.Level {
	s := strings.TrimSpace(level)
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
