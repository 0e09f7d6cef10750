package stdjson

import (
	"io"
	"log/slog"
)

// New returns a JSON logger for production output.
func New(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, opts))
}
