// Package network abstracts the external messaging network used for account
// sessions. Concrete transports implement Client and Dialer; the rest of the
// application only sees these interfaces.
package network

import "context"

// Profile describes the authenticated account as reported by the network.
type Profile struct {
	ID        int64
	Phone     string
	FirstName string
	LastName  string
	Username  string
}

// DisplayName renders the profile's human-readable name.
func (p *Profile) DisplayName() string {
	if p == nil {
		return ""
	}

	if p.LastName != "" {
		return p.FirstName + " " + p.LastName
	}

	return p.FirstName
}

// SentCode acknowledges a verification code request.
type SentCode struct {
	// Hash must be echoed back when signing in with the code.
	Hash string
}

// Client is one live connection to the external messaging network.
// Every opened client must be disconnected on every exit path.
type Client interface {
	Connect(ctx context.Context) error
	SendCodeRequest(ctx context.Context, phone string) (*SentCode, error)
	SignInWithCode(ctx context.Context, phone, codeHash, code string) (*Profile, error)
	SignInWithPassword(ctx context.Context, password string) (*Profile, error)
	GetMe(ctx context.Context) (*Profile, error)
	SendMessage(ctx context.Context, target, message string) error
	// LogOut terminates the account session on all devices, not just this one.
	LogOut(ctx context.Context) error
	Disconnect() error
	// ExportSession serializes the authorization into a reusable token.
	ExportSession() (string, error)
}

// Dialer produces network clients. Dial opens a fresh unauthenticated client
// for a login flow; DialSession restores a client from a stored session token.
type Dialer interface {
	Dial(ctx context.Context) (Client, error)
	DialSession(ctx context.Context, sessionToken string) (Client, error)
}

// Credentials identifies this application to the external network.
type Credentials struct {
	APIID   int
	APIHash string
}
