// Package token interns dotted field identifiers such as "ipv4.dst" into
// compact integer handles.
//
// A fixed vocabulary of well-known names is compiled into the package (see
// [LookupStatic]). Names outside of it are issued by a [Registry] on first
// sight and keep their value for the lifetime of the Registry.
package token

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"
)

// Token is an interned name handle. Tokens are comparable and totally ordered.
// Tokens below [StaticLen] belong to the static table and are valid across
// every Registry; the rest are only meaningful within the Registry that issued them.
type Token uint64

// IsStatic reports whether t belongs to the static table.
func (t Token) IsStatic() bool { return t < StaticLen }

// String returns the static name of t or "Token(N)" for dynamic tokens.
// Use [Registry.Resolve] to obtain the name of dynamic tokens.
func (t Token) String() string {
	if name, ok := StaticName(t); ok {
		return name
	}
	return "Token(" + strconv.FormatUint(uint64(t), 10) + ")"
}

// ErrExhausted is returned by [Registry.Intern] when no more tokens can be issued.
var ErrExhausted = errors.New("token: registry exhausted")

// Registry maps strings to tokens. Static names are resolved without locking;
// dynamic names are inserted under a write lock, so concurrent interning of the
// same new name yields a single token.
//
// The zero value of Registry is ready to use and has no issue limit.
type Registry struct {
	mu    sync.RWMutex
	index map[string]Token
	names []string
	// limit is the maximum number of dynamic tokens. Zero means no limit
	// other than the token width.
	limit uint64
}

// NewRegistry returns a Registry with no issue limit.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]Token)}
}

// NewRegistryLimit returns a Registry that issues at most maxDynamic
// dynamic tokens before failing with [ErrExhausted].
func NewRegistryLimit(maxDynamic uint64) *Registry {
	r := NewRegistry()
	r.limit = maxDynamic
	return r
}

// Intern returns the token for s, issuing a new one if s has not been seen before.
// The empty string is a valid name. Names are case sensitive and not normalized.
func (r *Registry) Intern(s string) (Token, error) {
	if t, ok := LookupStatic(s); ok {
		return t, nil
	}
	r.mu.RLock()
	t, ok := r.index[s]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok = r.index[s]; ok {
		return t, nil // Another goroutine won the race.
	}
	n := uint64(len(r.names))
	if (r.limit != 0 && n >= r.limit) || n >= math.MaxUint64-uint64(StaticLen) {
		return 0, ErrExhausted
	}
	if r.index == nil {
		r.index = make(map[string]Token)
	}
	// Callers may hand over strings aliasing packet memory.
	s = strings.Clone(s)
	t = StaticLen + Token(n)
	r.names = append(r.names, s)
	r.index[s] = t
	return t, nil
}

// MustIntern is like [Registry.Intern] but panics on failure.
// It is meant for decoder initialization.
func (r *Registry) MustIntern(s string) Token {
	t, err := r.Intern(s)
	if err != nil {
		panic(err.Error() + ": " + strconv.Quote(s))
	}
	return t
}

// Lookup returns the token for s without issuing a new one.
func (r *Registry) Lookup(s string) (Token, bool) {
	if t, ok := LookupStatic(s); ok {
		return t, true
	}
	r.mu.RLock()
	t, ok := r.index[s]
	r.mu.RUnlock()
	return t, ok
}

// Resolve returns the name of t. It returns false for tokens never issued by r.
func (r *Registry) Resolve(t Token) (string, bool) {
	if t < StaticLen {
		return staticNames[t], true
	}
	idx := uint64(t - StaticLen)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if idx >= uint64(len(r.names)) {
		return "", false
	}
	return r.names[idx], true
}

// Name returns the name of t or the result of [Token.String] when t is unknown to r.
func (r *Registry) Name(t Token) string {
	if name, ok := r.Resolve(t); ok {
		return name
	}
	return t.String()
}

// Len returns the amount of dynamic tokens issued by r.
func (r *Registry) Len() int {
	r.mu.RLock()
	n := len(r.names)
	r.mu.RUnlock()
	return n
}
