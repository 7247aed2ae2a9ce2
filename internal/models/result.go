package models

// Result holds either a value or an error, never both.
type Result[T any] struct {
	value T
	err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Err wraps a failure.
func Err[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// FromPair converts a (value, error) return into a Result. A non-nil error
// wins even when a value was returned alongside it.
func FromPair[T any](v T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}

// IsOk reports whether the result is a success.
func (r Result[T]) IsOk() bool {
	return r.err == nil
}

// Value returns the value and whether the result is a success.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.err == nil
}

// Error returns the failure, or nil on success.
func (r Result[T]) Error() error {
	return r.err
}

// Unpack returns the result as a Go (value, error) pair.
func (r Result[T]) Unpack() (T, error) {
	return r.value, r.err
}

// Map applies fn to a successful value.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if r.err != nil {
		return Err[U](r.err)
	}
	return Ok(fn(r.value))
}

// AndThen chains an operation that may itself fail.
func AndThen[T, U any](r Result[T], fn func(T) Result[U]) Result[U] {
	if r.err != nil {
		return Err[U](r.err)
	}
	return fn(r.value)
}

// UnwrapOr returns the value, or fallback on failure.
func UnwrapOr[T any](r Result[T], fallback T) T {
	if r.err != nil {
		return fallback
	}
	return r.value
}
