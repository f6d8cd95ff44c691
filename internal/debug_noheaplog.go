//go:build !debugheaplog

package internal

import (
	"context"
	"log/slog"
)

// LogAttrs logs through l when l is non-nil. The debugheaplog build tag
// replaces it with a printer that reports heap growth on every line.
func LogAttrs(l *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if l != nil {
		l.LogAttrs(context.Background(), level, msg, attrs...)
	}
}
