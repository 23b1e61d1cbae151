package domain

// ResultKind distinguishes "no data yet" from "permanently failed".
type ResultKind int

const (
	ResultSuccess ResultKind = iota
	ResultRecoverable
	ResultFatal
)

// Result carries the outcome of a remote read.
type Result[T any] struct {
	Value T
	Kind  ResultKind
	Err   error
}

// Success wraps a value that was read successfully.
func Success[T any](value T) Result[T] {
	return Result[T]{Value: value, Kind: ResultSuccess}
}

// Recoverable wraps a failure worth retrying on the next cycle.
func Recoverable[T any](err error) Result[T] {
	return Result[T]{Kind: ResultRecoverable, Err: err}
}

// Fatal wraps a failure that must end the workflow.
func Fatal[T any](err error) Result[T] {
	return Result[T]{Kind: ResultFatal, Err: err}
}

// Ok reports whether the result holds a value.
func (r Result[T]) Ok() bool {
	return r.Kind == ResultSuccess
}
