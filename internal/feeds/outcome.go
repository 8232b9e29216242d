// Package feeds adapts the three upstream sources (completion model for weather
// and stocks, RSS converter for news) into validated model types.
package feeds

// Outcome is an adapter result. Fallback marks substitute data produced after an
// upstream failure; callers must not cache it.
type Outcome[T any] struct {
	Value    T
	Fallback bool
}

func fresh[T any](v T) Outcome[T] { return Outcome[T]{Value: v} }

func fallback[T any](v T) Outcome[T] { return Outcome[T]{Value: v, Fallback: true} }
