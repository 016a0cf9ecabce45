package generic

// Option holds either a value (Some) or nothing (None). The zero value is None.
type Option[T any] struct {
	Value    T
	hasValue bool
}

func Some[T any](value T) Option[T] {
	return Option[T]{Value: value, hasValue: true}
}

func None[T any]() Option[T] {
	return Option[T]{}
}

func (o Option[T]) IsSome() bool {
	return o.hasValue
}

func (o Option[T]) IsNone() bool {
	return !o.hasValue
}

// Expect returns the value, or panics with msg if there is none.
func (o Option[T]) Expect(msg string) T {
	if !o.hasValue {
		panic(msg)
	}
	return o.Value
}

// Unwrap returns the value, or panics if there is none.
func (o Option[T]) Unwrap() T {
	return o.Expect("tried to Unwrap() a None")
}
