package login

import (
	"time"

	"github.com/relaygate/relay-bot/internal/network"
)

// State represents a login attempt's position in the authentication flow.
type State string

const (
	// StateCredentialsSet indicates the phone number was captured but no
	// code has been requested yet.
	StateCredentialsSet State = "credentials_set"
	// StateCodeSent indicates a verification code was requested and the
	// user must now supply it.
	StateCodeSent State = "code_sent"
	// StateNeedPassword indicates the code was accepted but the account
	// requires its two-factor password.
	StateNeedPassword State = "need_password"
	// StateLoggedIn indicates the flow completed and a session was stored.
	StateLoggedIn State = "logged_in"
	// StateCodeExpired indicates the verification code lapsed before use.
	StateCodeExpired State = "code_expired"
	// StateTooManyAttempts indicates the attempt budget was exhausted.
	StateTooManyAttempts State = "too_many_attempts"
	// StateVerifyError indicates an unexpected verification failure.
	StateVerifyError State = "verify_error"
)

// Terminal reports whether the state ends the attempt's lifecycle.
func (s State) Terminal() bool {
	switch s {
	case StateLoggedIn, StateCodeExpired, StateTooManyAttempts, StateVerifyError:
		return true
	}

	return false
}

// Attempt is the in-memory record of one in-flight login flow. It is never
// persisted; a process restart loses all in-flight logins.
type Attempt struct {
	ID            string
	UserID        int64
	Phone         string
	CodeHash      string
	Client        network.Client
	State         State
	Attempts      int
	NeedsPassword bool
	CreatedAt     time.Time
}
