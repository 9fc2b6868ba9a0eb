package retry

// Result is the outcome of one attempt: either still pending or final with a value.
type Result[T any] struct {
	value   T
	pending bool
}

func Pending[T any]() Result[T] {
	return Result[T]{pending: true}
}

func Final[T any](v T) Result[T] {
	return Result[T]{value: v}
}

func (r Result[T]) IsPending() bool {
	return r.pending
}

// Value returns the final value; it is the zero value while pending.
func (r Result[T]) Value() T {
	return r.value
}
