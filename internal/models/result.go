package models

// Result is what the orchestration layer hands to callers: either Data or a
// user-facing Error message, never both.
type Result[T any] struct {
	Data  T      `json:"data"`
	Error string `json:"error,omitempty"`
	// MissingData marks a brief request rejected before any model call.
	MissingData bool `json:"missingData,omitempty"`
}

// OK reports whether the result carries data.
func (r Result[T]) OK() bool {
	return r.Error == ""
}

// Success wraps v as a successful Result.
func Success[T any](v T) Result[T] {
	return Result[T]{Data: v}
}

// Failure returns a failed Result with the given message.
func Failure[T any](msg string) Result[T] {
	return Result[T]{Error: msg}
}
