package types

// Option is an explicitly tagged optional value. Absence is a state of its
// own and is encoded as such, never elided.
type Option[T any] struct {
	value T
	some  bool
}

func Some[T any](v T) Option[T] {
	return Option[T]{value: v, some: true}
}

func None[T any]() Option[T] {
	return Option[T]{}
}

// Get returns the value and whether it is present
func (o Option[T]) Get() (T, bool) {
	return o.value, o.some
}

func (o Option[T]) IsSome() bool {
	return o.some
}

// OrElse returns the value if present, otherwise def
func (o Option[T]) OrElse(def T) T {
	if o.some {
		return o.value
	}
	return def
}

// Ptr returns a pointer to a copy of the value, or nil when absent
func (o Option[T]) Ptr() *T {
	if !o.some {
		return nil
	}
	v := o.value
	return &v
}
