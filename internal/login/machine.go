package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/relaygate/relay-bot/internal/apperr"
	"github.com/relaygate/relay-bot/internal/domain"
	"github.com/relaygate/relay-bot/internal/network"
	"github.com/relaygate/relay-bot/internal/repository"
	"github.com/relaygate/relay-bot/pkg/metrics"
)

// DefaultMaxAttempts is the shared budget for code and password retries.
const DefaultMaxAttempts = 5

// OutcomeStatus classifies the result of a verify step.
type OutcomeStatus string

const (
	// OutcomeSuccess means the account is authenticated and a session was stored.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeNeedPassword means the account requires its two-factor password.
	OutcomeNeedPassword OutcomeStatus = "need_password"
	// OutcomeFailure means the step failed; Reason says whether a retry is possible.
	OutcomeFailure OutcomeStatus = "failure"
)

// Outcome is the result of a verification step.
type Outcome struct {
	Status  OutcomeStatus
	Profile *network.Profile
	Reason  string
	// Terminal is set when the attempt was deleted and no retry is possible.
	Terminal bool
}

// Machine drives the multi-step login flow against the external network.
// Attempts live in memory only; successful logins are persisted as stored
// sessions through the repository.
type Machine struct {
	dialer      network.Dialer
	sessions    repository.SessionRepository
	attempts    *Table
	log         *slog.Logger
	maxAttempts int
}

// NewMachine constructs a login machine. maxAttempts <= 0 falls back to
// DefaultMaxAttempts.
func NewMachine(dialer network.Dialer, sessions repository.SessionRepository, log *slog.Logger, maxAttempts int) *Machine {
	if log == nil {
		log = slog.Default()
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	return &Machine{
		dialer:      dialer,
		sessions:    sessions,
		attempts:    NewTable(),
		log:         log,
		maxAttempts: maxAttempts,
	}
}

// Start opens a connection, requests a verification code for the phone and
// returns an opaque login id the caller must echo back on verify. Any
// previous in-flight attempt for the user is discarded.
func (m *Machine) Start(ctx context.Context, userID int64, phone string) (string, error) {
	if phone == "" {
		return "", apperr.NewUserInputError("Usage: /login <phone number>")
	}

	client, err := m.dialer.Dial(ctx)
	if err != nil {
		return "", apperr.NewNetworkError("messaging network", err)
	}

	if err := client.Connect(ctx); err != nil {
		m.disconnect(client)
		return "", apperr.NewNetworkError("messaging network", err)
	}

	sent, err := client.SendCodeRequest(ctx, phone)
	if err != nil {
		m.disconnect(client)
		if flood, ok := network.IsFloodWait(err); ok {
			return "", apperr.NewAuthError(
				fmt.Sprintf("code request rate limited: %v", err),
				fmt.Sprintf("Too many login requests. Try again in %s.", flood.RetryAfter),
			)
		}
		return "", apperr.NewNetworkError("messaging network", err)
	}

	attempt := &Attempt{
		ID:        uuid.NewString(),
		UserID:    userID,
		Phone:     phone,
		CodeHash:  sent.Hash,
		Client:    client,
		State:     StateCredentialsSet,
		CreatedAt: time.Now().UTC(),
	}
	m.advance(attempt, StateCodeSent)

	if replaced := m.attempts.Put(attempt); replaced != nil {
		m.disconnect(replaced.Client)
		m.log.Info("replaced in-flight login attempt",
			slog.Int64("user_id", userID),
			slog.String("old_login_id", replaced.ID),
		)
	}

	metrics.RecordLoginOutcome("code_sent")
	return attempt.ID, nil
}

// VerifyCode checks the verification code for the attempt. Invalid codes are
// retryable until the attempt budget is exhausted; an expired code is
// terminal. A two-factor account yields NEED_PASSWORD and the caller must
// switch to VerifyPassword.
func (m *Machine) VerifyCode(ctx context.Context, userID int64, loginID, code string) (*Outcome, error) {
	attempt, err := m.lookup(userID, loginID)
	if err != nil {
		return nil, err
	}

	if attempt.NeedsPassword {
		return &Outcome{
			Status: OutcomeNeedPassword,
			Reason: "This account requires a password. Send it with /password.",
		}, nil
	}

	profile, signErr := attempt.Client.SignInWithCode(ctx, attempt.Phone, attempt.CodeHash, code)
	switch {
	case signErr == nil:
		return m.complete(ctx, attempt, profile)

	case errors.Is(signErr, network.ErrInvalidCode):
		return m.countFailure(attempt, "code")

	case errors.Is(signErr, network.ErrCodeExpired):
		m.finish(attempt, StateCodeExpired)
		metrics.RecordLoginOutcome("code_expired")
		return &Outcome{
			Status:   OutcomeFailure,
			Reason:   "The verification code expired. Start again with /login.",
			Terminal: true,
		}, nil

	case errors.Is(signErr, network.ErrPasswordNeeded):
		m.attempts.Mutate(attempt.ID, func(a *Attempt) {
			a.NeedsPassword = true
		})
		m.advance(attempt, StateNeedPassword)
		metrics.RecordLoginOutcome("need_password")
		return &Outcome{
			Status: OutcomeNeedPassword,
			Reason: "This account has two-factor authentication. Send your password with /password.",
		}, nil

	default:
		return m.abort(attempt, signErr)
	}
}

// VerifyPassword checks the two-factor password. It requires a prior
// NEED_PASSWORD outcome for the attempt. An invalid password is retryable
// within the same attempt budget the code step draws from.
func (m *Machine) VerifyPassword(ctx context.Context, userID int64, loginID, password string) (*Outcome, error) {
	attempt, err := m.lookup(userID, loginID)
	if err != nil {
		return nil, err
	}

	if !attempt.NeedsPassword {
		return &Outcome{
			Status: OutcomeFailure,
			Reason: "No password was requested for this login. Send the code with /code.",
		}, nil
	}

	profile, signErr := attempt.Client.SignInWithPassword(ctx, password)
	switch {
	case signErr == nil:
		return m.complete(ctx, attempt, profile)

	case errors.Is(signErr, network.ErrInvalidPassword):
		return m.countFailure(attempt, "password")

	default:
		return m.abort(attempt, signErr)
	}
}

// Cancel discards the user's in-flight attempt, if any, and reports whether
// one existed. An in-flight network call is not interrupted; its result is
// simply discarded.
func (m *Machine) Cancel(userID int64) bool {
	attempt, ok := m.attempts.RemoveByUser(userID)
	if !ok {
		return false
	}

	m.disconnect(attempt.Client)
	metrics.RecordLoginOutcome("cancelled")
	m.log.Info("login attempt cancelled", slog.Int64("user_id", userID), slog.String("login_id", attempt.ID))
	return true
}

// CleanupExpired discards attempts older than maxAge and disconnects their
// clients. It returns the number of attempts removed.
func (m *Machine) CleanupExpired(maxAge time.Duration) int {
	expired := m.attempts.Expired(maxAge)
	for _, attempt := range expired {
		m.disconnect(attempt.Client)
		m.log.Info("expired login attempt removed",
			slog.Int64("user_id", attempt.UserID),
			slog.String("login_id", attempt.ID),
		)
	}

	return len(expired)
}

// ActiveLogin returns the user's current login id and whether the attempt is
// waiting for the two-factor password.
func (m *Machine) ActiveLogin(userID int64) (loginID string, needsPassword bool, ok bool) {
	attempt, ok := m.attempts.GetByUser(userID)
	if !ok {
		return "", false, false
	}

	return attempt.ID, attempt.NeedsPassword, true
}

// InFlight returns the number of active login attempts.
func (m *Machine) InFlight() int {
	return m.attempts.Len()
}

func (m *Machine) lookup(userID int64, loginID string) (*Attempt, error) {
	attempt, ok := m.attempts.Get(loginID)
	if !ok || attempt.UserID != userID {
		return nil, apperr.NewNotFoundError("Login attempt")
	}

	return attempt, nil
}

// complete exports the session, persists it and closes the attempt. The
// connection is released on every path out of here.
func (m *Machine) complete(ctx context.Context, attempt *Attempt, profile *network.Profile) (*Outcome, error) {
	token, err := attempt.Client.ExportSession()
	if err != nil {
		m.finish(attempt, StateVerifyError)
		metrics.RecordLoginOutcome("error")
		return nil, apperr.NewInternalError(fmt.Errorf("export session: %w", err))
	}

	now := time.Now().UTC()
	session := &domain.StoredSession{
		OwnerID:      attempt.UserID,
		Phone:        attempt.Phone,
		SessionToken: token,
		CreatedAt:    now,
		LastUsed:     now,
	}

	if err := m.sessions.Save(ctx, session); err != nil {
		m.finish(attempt, StateVerifyError)
		metrics.RecordLoginOutcome("error")
		return nil, apperr.NewDatabaseError(fmt.Errorf("save session: %w", err))
	}

	m.finish(attempt, StateLoggedIn)
	metrics.RecordLoginOutcome("success")
	m.log.Info("login completed",
		slog.Int64("user_id", attempt.UserID),
		slog.String("login_id", attempt.ID),
	)

	return &Outcome{Status: OutcomeSuccess, Profile: profile}, nil
}

// countFailure burns one unit of the attempt budget and either keeps the
// attempt alive for a retry or terminates it.
func (m *Machine) countFailure(attempt *Attempt, what string) (*Outcome, error) {
	remaining := 0
	m.attempts.Mutate(attempt.ID, func(a *Attempt) {
		a.Attempts++
		remaining = m.maxAttempts - a.Attempts
	})

	if remaining <= 0 {
		m.finish(attempt, StateTooManyAttempts)
		metrics.RecordLoginOutcome("too_many_attempts")
		return &Outcome{
			Status:   OutcomeFailure,
			Reason:   "Too many failed attempts. Start again with /login.",
			Terminal: true,
		}, nil
	}

	metrics.RecordLoginOutcome("invalid_" + what)
	return &Outcome{
		Status: OutcomeFailure,
		Reason: fmt.Sprintf("Invalid %s, %d attempts remaining.", what, remaining),
	}, nil
}

// abort terminates the attempt on an unexpected verification error.
func (m *Machine) abort(attempt *Attempt, cause error) (*Outcome, error) {
	m.finish(attempt, StateVerifyError)
	metrics.RecordLoginOutcome("error")
	m.log.Error("login verification failed",
		slog.Int64("user_id", attempt.UserID),
		slog.String("login_id", attempt.ID),
		slog.Any("error", cause),
	)

	if errors.Is(cause, network.ErrTimeout) {
		return &Outcome{
			Status:   OutcomeFailure,
			Reason:   "The messaging network did not respond in time. Start again with /login.",
			Terminal: true,
		}, nil
	}

	return &Outcome{
		Status:   OutcomeFailure,
		Reason:   "Verification failed. Start again with /login.",
		Terminal: true,
	}, nil
}

// finish moves the attempt to a terminal state, removes it from the table and
// releases its connection.
func (m *Machine) finish(attempt *Attempt, to State) {
	m.advance(attempt, to)
	m.attempts.Remove(attempt.ID)
	m.disconnect(attempt.Client)
}

func (m *Machine) advance(attempt *Attempt, to State) {
	if !IsTransitionAllowed(attempt.State, to) {
		m.log.Warn("invalid login state transition",
			slog.String("login_id", attempt.ID),
			slog.String("from", string(attempt.State)),
			slog.String("to", string(to)),
		)
		return
	}

	attempt.State = to
}

func (m *Machine) disconnect(client network.Client) {
	if client == nil {
		return
	}

	if err := client.Disconnect(); err != nil {
		m.log.Warn("failed to disconnect network client", slog.Any("error", err))
	}
}
