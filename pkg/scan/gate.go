package scan

import "sync/atomic"

// Gate admits the first decoded result of a session and rejects the rest.
// It is created armed for every session and never re-armed.
type Gate struct {
	tripped atomic.Bool
}

// NewGate returns an armed gate.
func NewGate() *Gate {
	return &Gate{}
}

// Admit returns true for exactly one caller, however many race. The
// candidate text plays no part in the decision: the first decode wins
// whether later ones repeat it or not.
func (g *Gate) Admit(candidate string) bool {
	return g.tripped.CompareAndSwap(false, true)
}

// Tripped reports whether a result has been admitted.
func (g *Gate) Tripped() bool {
	return g.tripped.Load()
}
