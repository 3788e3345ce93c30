package network

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relaygate/relay-bot/internal/apperr"
	"github.com/relaygate/relay-bot/pkg/metrics"
)

const DefaultCallTimeout = 30 * time.Second

// GuardedDialer decorates another Dialer so that every call on the produced
// clients runs under a deadline, and dialing itself goes through a circuit
// breaker. A hung external endpoint must never stall a webhook delivery.
type GuardedDialer struct {
	next    Dialer
	timeout time.Duration
	breaker *apperr.CircuitBreaker
}

// NewGuardedDialer wraps next with per-call timeouts and a circuit breaker.
func NewGuardedDialer(next Dialer, timeout time.Duration) *GuardedDialer {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	return &GuardedDialer{
		next:    next,
		timeout: timeout,
		breaker: apperr.NewCircuitBreaker(),
	}
}

func (d *GuardedDialer) Dial(ctx context.Context) (Client, error) {
	var client Client
	err := d.breaker.Call(func() error {
		var dialErr error
		client, dialErr = d.next.Dial(ctx)
		return dialErr
	})
	if err != nil {
		return nil, err
	}

	return &timedClient{next: client, timeout: d.timeout}, nil
}

func (d *GuardedDialer) DialSession(ctx context.Context, sessionToken string) (Client, error) {
	var client Client
	err := d.breaker.Call(func() error {
		var dialErr error
		client, dialErr = d.next.DialSession(ctx, sessionToken)
		return dialErr
	})
	if err != nil {
		return nil, err
	}

	return &timedClient{next: client, timeout: d.timeout}, nil
}

// timedClient applies the configured timeout to every blocking call and
// records call durations.
type timedClient struct {
	next    Client
	timeout time.Duration
}

func (c *timedClient) Connect(ctx context.Context) error {
	return c.run(ctx, "connect", c.next.Connect)
}

func (c *timedClient) SendCodeRequest(ctx context.Context, phone string) (*SentCode, error) {
	var sent *SentCode
	err := c.run(ctx, "send_code", func(callCtx context.Context) error {
		var callErr error
		sent, callErr = c.next.SendCodeRequest(callCtx, phone)
		return callErr
	})
	return sent, err
}

func (c *timedClient) SignInWithCode(ctx context.Context, phone, codeHash, code string) (*Profile, error) {
	var profile *Profile
	err := c.run(ctx, "sign_in_code", func(callCtx context.Context) error {
		var callErr error
		profile, callErr = c.next.SignInWithCode(callCtx, phone, codeHash, code)
		return callErr
	})
	return profile, err
}

func (c *timedClient) SignInWithPassword(ctx context.Context, password string) (*Profile, error) {
	var profile *Profile
	err := c.run(ctx, "sign_in_password", func(callCtx context.Context) error {
		var callErr error
		profile, callErr = c.next.SignInWithPassword(callCtx, password)
		return callErr
	})
	return profile, err
}

func (c *timedClient) GetMe(ctx context.Context) (*Profile, error) {
	var profile *Profile
	err := c.run(ctx, "get_me", func(callCtx context.Context) error {
		var callErr error
		profile, callErr = c.next.GetMe(callCtx)
		return callErr
	})
	return profile, err
}

func (c *timedClient) SendMessage(ctx context.Context, target, message string) error {
	return c.run(ctx, "send_message", func(callCtx context.Context) error {
		return c.next.SendMessage(callCtx, target, message)
	})
}

func (c *timedClient) LogOut(ctx context.Context) error {
	return c.run(ctx, "log_out", c.next.LogOut)
}

func (c *timedClient) Disconnect() error {
	return c.next.Disconnect()
}

func (c *timedClient) ExportSession() (string, error) {
	return c.next.ExportSession()
}

func (c *timedClient) run(ctx context.Context, op string, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := fn(callCtx)
	status := "ok"

	if err != nil {
		status = "error"
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			status = "timeout"
			err = fmt.Errorf("%s: %w", op, ErrTimeout)
		}
	}

	metrics.ObserveExternalCall(op, status, time.Since(start))

	return err
}
