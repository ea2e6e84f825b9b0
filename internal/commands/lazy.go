package commands

// Lazy is either an unresolved loader or a resolved value. Get runs the loader
// at most once and caches its outcome, including errors.
type Lazy[T any] struct {
	load     func() (T, error)
	resolved bool
	value    T
	err      error
}

func NewLazy[T any](load func() (T, error)) *Lazy[T] {
	return &Lazy[T]{load: load}
}

// Resolved wraps an already known value.
func Resolved[T any](v T) *Lazy[T] {
	return &Lazy[T]{resolved: true, value: v}
}

func (l *Lazy[T]) Get() (T, error) {
	if !l.resolved {
		if l.load != nil {
			l.value, l.err = l.load()
		}
		l.resolved = true
		l.load = nil
	}
	return l.value, l.err
}

// IsResolved reports whether the loader has run.
func (l *Lazy[T]) IsResolved() bool { return l.resolved }
