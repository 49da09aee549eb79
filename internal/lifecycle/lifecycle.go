// Package lifecycle provides the status-machine table shared by the request,
// assignment and SOS lifecycles. A Machine is a transition table (diagram as
// code); states with no outgoing transitions are terminal.
package lifecycle

type Machine[S ~string] struct {
	allowed map[S][]S
}

func New[S ~string](allowed map[S][]S) Machine[S] {
	return Machine[S]{allowed: allowed}
}

// CanTransition reports whether from → to is a legal transition.
func (m Machine[S]) CanTransition(from, to S) bool {
	for _, s := range m.allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a state has no outgoing transitions.
func (m Machine[S]) Terminal(s S) bool {
	return len(m.allowed[s]) == 0
}
