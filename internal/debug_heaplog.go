//go:build debugheaplog

package internal

import (
	"log/slog"
	"strconv"
	"sync"
	"unsafe"
)

var (
	linemu sync.Mutex
	line   [512]byte
)

// LogAttrs prints every message to stderr regardless of l and appends the
// heap growth observed since the previous message. Printing goes through
// the runtime so that the logger itself does not allocate.
func LogAttrs(_ *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	linemu.Lock()
	defer linemu.Unlock()
	b := line[:0]
	if level == LevelTrace {
		b = append(b, "TRACE"...)
	} else {
		b = append(b, level.String()...)
	}
	b = append(b, ' ')
	b = append(b, msg...)
	for _, a := range attrs {
		b = appendAttr(b, "", a)
	}
	if octets, objects := HeapDelta(); octets != 0 {
		b = append(b, " alloc.octets="...)
		b = strconv.AppendUint(b, octets, 10)
		b = append(b, " alloc.objects="...)
		b = strconv.AppendUint(b, objects, 10)
	}
	println(unsafe.String(&b[0], len(b)))
}

func appendAttr(b []byte, prefix string, a slog.Attr) []byte {
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			b = appendAttr(b, prefix+a.Key+".", ga)
		}
		return b
	}
	b = append(b, ' ')
	b = append(b, prefix...)
	b = append(b, a.Key...)
	b = append(b, '=')
	switch a.Value.Kind() {
	case slog.KindString:
		b = append(b, a.Value.String()...)
	case slog.KindInt64:
		b = strconv.AppendInt(b, a.Value.Int64(), 10)
	case slog.KindUint64:
		b = strconv.AppendUint(b, a.Value.Uint64(), 10)
	case slog.KindBool:
		b = strconv.AppendBool(b, a.Value.Bool())
	default:
		b = append(b, '?')
	}
	return b
}
