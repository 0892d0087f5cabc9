package parser

// Strategy one named way of obtaining a value
type Strategy[T any] struct {
	Name     string
	Degraded bool // the strategy is a heuristic fallback
	Try      func() (T, bool)
}

// Attempt tagged outcome of a strategy chain
type Attempt[T any] struct {
	Value    T
	OK       bool
	Strategy string
	Degraded bool
	Tried    []string
}

// FirstOf runs strategies in order and returns the first success
func FirstOf[T any](strategies ...Strategy[T]) Attempt[T] {
	var a Attempt[T]
	for _, s := range strategies {
		a.Tried = append(a.Tried, s.Name)
		if v, ok := s.Try(); ok {
			a.Value = v
			a.OK = true
			a.Strategy = s.Name
			a.Degraded = s.Degraded
			return a
		}
	}
	return a
}
