package internal

// ResetArena empties an arena for a new frame, keeping its backing array
// if it holds at least n elements and allocating exactly n otherwise.
func ResetArena[T any](arena *[]T, n int) {
	if cap(*arena) < n {
		*arena = make([]T, 0, n)
		return
	}
	*arena = (*arena)[:0]
}

// ArenaNext grows the arena by one element and returns it. The element
// keeps whatever a previous frame left in it so callers must overwrite
// every field. Pointers to earlier elements are invalidated when the
// arena grows.
func ArenaNext[T any](arena *[]T) *T {
	a := *arena
	n := len(a)
	if n < cap(a) {
		*arena = a[:n+1]
	} else {
		var zero T
		*arena = append(a, zero)
	}
	return &(*arena)[n]
}
