package noop

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewNoop(t *testing.T) {
	l := NewNoop()

	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
	assert.NotPanics(t, func() {
		l.With("k", "v").WithGroup("g").Error("ignored", "error", "boom")
	})
}
