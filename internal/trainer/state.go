package trainer

// State is a step of a trainer run:
//
//	Start -> Loaded -> Trained -> GateChecked -> Accepted -> Persisted -> Done
//	                                          \-> Rejected -> Failed
//
// Any failure before the gate moves the run straight to Failed.
type State int

const (
	StateStart State = iota
	StateLoaded
	StateTrained
	StateGateChecked
	StateAccepted
	StatePersisted
	StateDone
	StateRejected
	StateFailed
)

var stateNames = [...]string{
	StateStart:       "start",
	StateLoaded:      "loaded",
	StateTrained:     "trained",
	StateGateChecked: "gate_checked",
	StateAccepted:    "accepted",
	StatePersisted:   "persisted",
	StateDone:        "done",
	StateRejected:    "rejected",
	StateFailed:      "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
