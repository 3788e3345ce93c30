package login

import "testing"

func TestIsTransitionAllowed(t *testing.T) {
	testCases := []struct {
		name     string
		from     State
		to       State
		expected bool
	}{
		{name: "credentials set to code sent", from: StateCredentialsSet, to: StateCodeSent, expected: true},
		{name: "code sent to need password", from: StateCodeSent, to: StateNeedPassword, expected: true},
		{name: "code sent to logged in", from: StateCodeSent, to: StateLoggedIn, expected: true},
		{name: "need password to logged in", from: StateNeedPassword, to: StateLoggedIn, expected: true},
		{name: "code sent to code expired", from: StateCodeSent, to: StateCodeExpired, expected: true},
		{name: "code sent to too many attempts", from: StateCodeSent, to: StateTooManyAttempts, expected: true},
		{name: "need password to verify error", from: StateNeedPassword, to: StateVerifyError, expected: true},
		{name: "credentials set to logged in skips code", from: StateCredentialsSet, to: StateLoggedIn, expected: false},
		{name: "need password back to code sent", from: StateNeedPassword, to: StateCodeSent, expected: false},
		{name: "logged in is terminal", from: StateLoggedIn, to: StateCodeSent, expected: false},
		{name: "too many attempts is terminal", from: StateTooManyAttempts, to: StateVerifyError, expected: false},
		{name: "unknown state to code sent invalid", from: State("unknown"), to: StateCodeSent, expected: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if actual := IsTransitionAllowed(tc.from, tc.to); actual != tc.expected {
				t.Errorf("IsTransitionAllowed(%s -> %s) = %t, expected %t", tc.from, tc.to, actual, tc.expected)
			}
		})
	}
}
