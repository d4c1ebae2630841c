package session

import "fmt"

// State is a session's lifecycle state
type State uint8

const (
	StateInitializing State = iota
	StateAwaitingPairing
	StateReady
	StateFailed
	StateClosed
)

var stateNames = [...]string{
	StateInitializing:    "INITIALIZING",
	StateAwaitingPairing: "AWAITING_PAIRING",
	StateReady:           "READY",
	StateFailed:          "FAILED",
	StateClosed:          "CLOSED",
}

// String returns the state name
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// live reports whether a record in this state blocks re-creation
func (s State) live() bool {
	return s == StateInitializing || s == StateAwaitingPairing || s == StateReady
}
