package fetch

// State is a snapshot of one fetcher. After a request settles exactly one of
// Data or Err is set and Loading is false.
type State[T any] struct {
	Data    *T
	Loading bool
	Err     error
}

// Started is the transition taken when a request is issued. Previously
// fetched data stays visible while loading; any previous error is cleared.
func (s State[T]) Started() State[T] {
	s.Loading = true
	s.Err = nil
	return s
}

// Succeeded is the transition taken when a request returns data.
func (s State[T]) Succeeded(data T) State[T] {
	return State[T]{Data: &data}
}

// Failed is the transition taken when a request fails.
func (s State[T]) Failed(err error) State[T] {
	return State[T]{Err: err}
}

// Settled reports whether the state is terminal for its request.
func (s State[T]) Settled() bool {
	return !s.Loading && (s.Data != nil || s.Err != nil)
}
