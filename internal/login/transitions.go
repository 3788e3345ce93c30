package login

// validTransitions contains the permitted forward transitions in the flow.
// Terminal failure states are reachable from any non-terminal state and are
// handled separately in IsTransitionAllowed.
var validTransitions = map[State][]State{
	StateCredentialsSet: {
		StateCodeSent,
	},
	StateCodeSent: {
		StateNeedPassword,
		StateLoggedIn,
	},
	StateNeedPassword: {
		StateLoggedIn,
	},
}

// IsTransitionAllowed reports whether moving from one state to another is valid.
// The flow only moves forward; restarting a login means deleting the attempt
// and creating a fresh one.
func IsTransitionAllowed(from, to State) bool {
	if from.Terminal() {
		return false
	}

	if to.Terminal() && to != StateLoggedIn {
		return true
	}

	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, state := range allowed {
		if state == to {
			return true
		}
	}

	return false
}
