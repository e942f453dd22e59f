package algo

import "fmt"

// LifecycleState enumerates the lifecycle of a hosted instance.
type LifecycleState int32

const (
	StateInitialized LifecycleState = iota
	StateRunning
	StatePaused
	StateStopped
)

func (s LifecycleState) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// MarshalText renders the state name.
func (s LifecycleState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *LifecycleState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "initialized":
		*s = StateInitialized
	case "running":
		*s = StateRunning
	case "paused":
		*s = StatePaused
	case "stopped":
		*s = StateStopped
	default:
		return fmt.Errorf("unknown lifecycle state %q", string(text))
	}
	return nil
}

// Listed reports whether instances in this state appear in the running listing.
func (s LifecycleState) Listed() bool {
	return s == StateRunning || s == StatePaused
}
