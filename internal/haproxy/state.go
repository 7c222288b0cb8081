package haproxy

import "fmt"

// State is the lifecycle state of an installed artifact
type State string

const (
	StateUninstalled State = "uninstalled" // Path computed, nothing on disk yet
	StateInstalled   State = "installed"   // File atomically written and owned
	StateRemoved     State = "removed"     // Released; terminal
)

// validTransitions maps from-state to allowed to-states
var validTransitions = map[State]map[State]bool{
	StateUninstalled: {
		StateInstalled: true, // Uninstalled → Installed (atomic write succeeded)
	},
	StateInstalled: {
		StateRemoved: true, // Installed → Removed (release, even if the unlink failed)
	},
	// Terminal: re-installing needs a fresh artifact
	StateRemoved: {},
}

// ValidateTransition checks if a state transition is valid
func ValidateTransition(from, to State) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown source state: %s", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminalState returns true if no further transitions exist
func IsTerminalState(state State) bool {
	return state == StateRemoved
}
