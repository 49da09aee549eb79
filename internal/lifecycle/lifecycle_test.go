package lifecycle

import "testing"

type phase string

const (
	phaseNew    phase = "new"
	phaseLive   phase = "live"
	phaseClosed phase = "closed"
)

func TestMachine(t *testing.T) {
	m := New(map[phase][]phase{
		phaseNew:  {phaseLive, phaseClosed},
		phaseLive: {phaseClosed},
	})

	if !m.CanTransition(phaseNew, phaseLive) {
		t.Error("new -> live should be allowed")
	}
	if m.CanTransition(phaseLive, phaseNew) {
		t.Error("live -> new should be rejected")
	}
	if m.CanTransition(phaseClosed, phaseLive) {
		t.Error("closed has no outgoing transitions")
	}
	if m.CanTransition(phaseNew, phaseNew) {
		t.Error("self-loop not declared, should be rejected")
	}

	if m.Terminal(phaseNew) || m.Terminal(phaseLive) {
		t.Error("states with outgoing transitions are not terminal")
	}
	if !m.Terminal(phaseClosed) {
		t.Error("closed is terminal")
	}
}
