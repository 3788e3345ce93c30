// Package networktest provides scriptable fakes for the network interfaces.
package networktest

import (
	"context"
	"sync"

	"github.com/relaygate/relay-bot/internal/network"
)

// FakeClient is a scriptable network.Client. Zero value behaves as a healthy
// client; set the error fields to force failures. Connect/Disconnect calls are
// counted so tests can assert connection hygiene.
type FakeClient struct {
	mu sync.Mutex

	ConnectErr  error
	SendCodeErr error
	CodeHash    string

	// SignInCodeErrs is consumed one per SignInWithCode call; when exhausted
	// (or empty) the sign-in succeeds.
	SignInCodeErrs []error
	PasswordErr    error

	Me        *network.Profile
	SendErr   error
	LogOutErr error

	ExportToken string
	ExportErr   error

	Connects    int
	Disconnects int
	SentTo      []string
	LoggedOut   bool
}

var _ network.Client = (*FakeClient)(nil)

func (c *FakeClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ConnectErr != nil {
		return c.ConnectErr
	}

	c.Connects++
	return nil
}

func (c *FakeClient) SendCodeRequest(ctx context.Context, phone string) (*network.SentCode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.SendCodeErr != nil {
		return nil, c.SendCodeErr
	}

	hash := c.CodeHash
	if hash == "" {
		hash = "hash"
	}

	return &network.SentCode{Hash: hash}, nil
}

func (c *FakeClient) SignInWithCode(ctx context.Context, phone, codeHash, code string) (*network.Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.SignInCodeErrs) > 0 {
		err := c.SignInCodeErrs[0]
		c.SignInCodeErrs = c.SignInCodeErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	return c.profileLocked(phone), nil
}

func (c *FakeClient) SignInWithPassword(ctx context.Context, password string) (*network.Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.PasswordErr != nil {
		return nil, c.PasswordErr
	}

	return c.profileLocked(""), nil
}

func (c *FakeClient) GetMe(ctx context.Context) (*network.Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.profileLocked(""), nil
}

func (c *FakeClient) SendMessage(ctx context.Context, target, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.SendErr != nil {
		return c.SendErr
	}

	c.SentTo = append(c.SentTo, target)
	return nil
}

func (c *FakeClient) LogOut(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.LoggedOut = true
	return c.LogOutErr
}

func (c *FakeClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Disconnects++
	return nil
}

func (c *FakeClient) ExportSession() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ExportErr != nil {
		return "", c.ExportErr
	}

	if c.ExportToken == "" {
		return "token", nil
	}

	return c.ExportToken, nil
}

// Balanced reports whether every counted connect was matched by a disconnect.
func (c *FakeClient) Balanced() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.Connects == c.Disconnects
}

func (c *FakeClient) profileLocked(phone string) *network.Profile {
	if c.Me != nil {
		return c.Me
	}

	return &network.Profile{ID: 1, Phone: phone, FirstName: "Test", Username: "test"}
}

// FakeDialer hands out preconfigured clients.
type FakeDialer struct {
	mu sync.Mutex

	Client         *FakeClient
	DialErr        error
	DialSessionErr error

	DialedTokens []string
}

var _ network.Dialer = (*FakeDialer)(nil)

func (d *FakeDialer) Dial(ctx context.Context) (network.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.DialErr != nil {
		return nil, d.DialErr
	}

	return d.clientLocked(), nil
}

func (d *FakeDialer) DialSession(ctx context.Context, sessionToken string) (network.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.DialSessionErr != nil {
		return nil, d.DialSessionErr
	}

	d.DialedTokens = append(d.DialedTokens, sessionToken)
	return d.clientLocked(), nil
}

func (d *FakeDialer) clientLocked() *FakeClient {
	if d.Client == nil {
		d.Client = &FakeClient{}
	}

	return d.Client
}
