package generic

import "fmt"

// Result holds the (T, error) pair from a call, so it can be stored or sent over a channel.
type Result[T any] struct {
	Value T
	Error error
}

func NewResult[T any](value T, err error) Result[T] {
	return Result[T]{Value: value, Error: err}
}

func (r Result[T]) IsOk() bool {
	return r.Error == nil
}

func (r Result[T]) IsErr() bool {
	return r.Error != nil
}

// Parts splits the Result back into a (T, error) pair.
func (r Result[T]) Parts() (T, error) {
	return r.Value, r.Error
}

// Ok is Some(Value) if there is no error, otherwise None.
func (r Result[T]) Ok() Option[T] {
	if r.IsErr() {
		return None[T]()
	}
	return Some(r.Value)
}

// Unwrap returns the value, or panics with the error.
func (r Result[T]) Unwrap() T {
	if r.IsErr() {
		panic(fmt.Errorf("tried to Unwrap() an error: %w", r.Error))
	}
	return r.Value
}

// Unwrap returns value, or panics if err is not nil. For calls that cannot fail in practice.
func Unwrap[T any](value T, err error) T {
	return NewResult(value, err).Unwrap()
}

// Unwrap_ is like Unwrap, for calls that only return an error.
func Unwrap_(err error) {
	if err != nil {
		panic(err)
	}
}
