package devslog

import (
	"io"
	"log/slog"

	"github.com/golang-cz/devslog"
)

// New returns a colourised, human oriented logger for local runs.
func New(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	handlerOpts := *opts
	handlerOpts.AddSource = true

	return slog.New(devslog.NewHandler(w, &devslog.Options{
		HandlerOptions:     &handlerOpts,
		NewLineAfterLog:    true,
		MaxErrorStackTrace: 40,
		MaxSlicePrintSize:  40,
		SortKeys:           true,
		TimeFormat:         "[15:04:05]",
		DebugColor:         devslog.Magenta,
		StringerFormatter:  true,
	}))
}
