package internal

import (
	"log/slog"
)

// SlogToken returns a slog.Attr for a token handle. Tokens are logged by
// value so that logging does not need to resolve names under the registry lock.
func SlogToken[T ~uint64](key string, tok T) slog.Attr {
	return slog.Uint64(key, uint64(tok))
}

// SlogRange returns a slog.Attr for a byte range of a packet.
func SlogRange(key string, off, n int) slog.Attr {
	return slog.Group(key, slog.Int("off", off), slog.Int("len", n))
}
