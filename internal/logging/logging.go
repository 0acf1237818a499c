// Package logging builds the process-wide structured logger.
// Every record is a single JSON object per line with its timestamp under "ts".
package logging

import (
	"io"
	"log/slog"
	"time"
)

// New returns a JSON slog logger writing to w. Timestamps are rendered in loc
// using RFC3339Nano; a nil loc means UTC.
func New(w io.Writer, loc *time.Location) *slog.Logger {
	if loc == nil {
		loc = time.UTC
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.String("ts", a.Value.Time().In(loc).Format(time.RFC3339Nano))
			}
			return a
		},
	})
	return slog.New(h)
}

// Discard returns a logger that drops every record. Useful in tests.
func Discard() *slog.Logger {
	return New(io.Discard, time.UTC)
}
