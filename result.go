package ulango

import "errors"

// errNilResult substitutes for a nil error handed to Err so a Result can
// never be neither ok nor err.
var errNilResult = errors.New("ulango: nil error supplied to Err")

// Result holds either a value or an error, never both and never neither.
// It is the return type of every client operation: failures travel as
// values instead of panics.
type Result[T any] struct {
	value T
	err   error
}

// Ok wraps a successful value.
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Err wraps a failure. A nil err is replaced with a sentinel to preserve
// the ok/err invariant.
func Err[T any](err error) Result[T] {
	if err == nil {
		err = errNilResult
	}
	return Result[T]{err: err}
}

// IsOk reports whether the result holds a value.
func (r Result[T]) IsOk() bool {
	return r.err == nil
}

// IsErr reports whether the result holds an error.
func (r Result[T]) IsErr() bool {
	return r.err != nil
}

// Value returns the held value, or the zero value of T when the result is err.
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the held error, or nil when the result is ok.
func (r Result[T]) Err() error {
	return r.err
}

// Unwrap returns the value and error in Go's conventional pair form.
func (r Result[T]) Unwrap() (T, error) {
	return r.value, r.err
}

// ValueOr returns the held value, or fallback when the result is err.
func (r Result[T]) ValueOr(fallback T) T {
	if r.err != nil {
		return fallback
	}
	return r.value
}

// Map transforms the ok value with fn, passing an err result through
// unchanged. It is a package function because Go methods cannot introduce
// new type parameters.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if r.err != nil {
		return Err[U](r.err)
	}
	return Ok(fn(r.value))
}

// AndThen chains a fallible step onto an ok result. An err result
// short-circuits without invoking fn.
func AndThen[T, U any](r Result[T], fn func(T) Result[U]) Result[U] {
	if r.err != nil {
		return Err[U](r.err)
	}
	return fn(r.value)
}

// MapErr transforms the error of an err result, passing an ok result
// through unchanged. A nil return from fn is normalized like Err.
func MapErr[T any](r Result[T], fn func(error) error) Result[T] {
	if r.err == nil {
		return r
	}
	return Err[T](fn(r.err))
}
