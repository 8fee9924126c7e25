package reconcile

// NewEmptyState is the engine's state between a join request and the
// first snapshot.
func NewEmptyState() State {
	return State{}
}

func ContainsSignal(signals []Signal, t SignalType) bool {
	for _, s := range signals {
		if s.Type == t {
			return true
		}
	}
	return false
}

func CountSignal(signals []Signal, t SignalType) int {
	n := 0
	for _, s := range signals {
		if s.Type == t {
			n++
		}
	}
	return n
}
