package login

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/relay-bot/internal/apperr"
	"github.com/relaygate/relay-bot/internal/domain"
	"github.com/relaygate/relay-bot/internal/network"
	"github.com/relaygate/relay-bot/internal/network/networktest"
)

type fakeSessionRepo struct {
	mu      sync.Mutex
	saved   []*domain.StoredSession
	saveErr error
}

func (r *fakeSessionRepo) Save(_ context.Context, session *domain.StoredSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.saveErr != nil {
		return r.saveErr
	}

	session.ID = int64(len(r.saved) + 1)
	session.IsActive = true
	r.saved = append(r.saved, session)
	return nil
}

func (r *fakeSessionRepo) FindActive(context.Context, int64) ([]*domain.StoredSession, error) {
	return nil, nil
}

func (r *fakeSessionRepo) FindActiveByPhone(context.Context, int64, string) (*domain.StoredSession, error) {
	return nil, nil
}

func (r *fakeSessionRepo) Deactivate(context.Context, int64, int64) error { return nil }

func (r *fakeSessionRepo) DeactivateAll(context.Context, int64) (int64, error) { return 0, nil }

func (r *fakeSessionRepo) Touch(context.Context, int64) error { return nil }

func (r *fakeSessionRepo) CountActive(context.Context) (int64, error) { return 0, nil }

func (r *fakeSessionRepo) savedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.saved)
}

func newTestMachine(client *networktest.FakeClient) (*Machine, *fakeSessionRepo) {
	repo := &fakeSessionRepo{}
	dialer := &networktest.FakeDialer{Client: client}

	return NewMachine(dialer, repo, nil, DefaultMaxAttempts), repo
}

func TestMachine_Start(t *testing.T) {
	client := &networktest.FakeClient{CodeHash: "h1"}
	machine, _ := newTestMachine(client)

	loginID, err := machine.Start(context.Background(), 42, "+15551234567")

	require.NoError(t, err)
	assert.NotEmpty(t, loginID)
	assert.Equal(t, 1, machine.InFlight())
	assert.Equal(t, 1, client.Connects)
	assert.Equal(t, 0, client.Disconnects)
}

func TestMachine_Start_EmptyPhone(t *testing.T) {
	machine, _ := newTestMachine(&networktest.FakeClient{})

	_, err := machine.Start(context.Background(), 42, "")

	var appErr *apperr.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindUserInput, appErr.Kind)
}

func TestMachine_Start_DialFailure(t *testing.T) {
	dialer := &networktest.FakeDialer{DialErr: errors.New("dns failure")}
	machine := NewMachine(dialer, &fakeSessionRepo{}, nil, DefaultMaxAttempts)

	_, err := machine.Start(context.Background(), 42, "+15551234567")

	var appErr *apperr.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindNetwork, appErr.Kind)
	assert.Equal(t, 0, machine.InFlight())
}

func TestMachine_Start_FloodWaitDisconnects(t *testing.T) {
	client := &networktest.FakeClient{
		SendCodeErr: &network.FloodWaitError{RetryAfter: 30 * time.Second},
	}
	machine, _ := newTestMachine(client)

	_, err := machine.Start(context.Background(), 42, "+15551234567")

	var appErr *apperr.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindAuth, appErr.Kind)
	assert.Contains(t, appErr.UserMessage, "30s")
	assert.True(t, client.Balanced())
	assert.Equal(t, 0, machine.InFlight())
}

func TestMachine_Start_ReplacesPreviousAttempt(t *testing.T) {
	first := &networktest.FakeClient{}
	second := &networktest.FakeClient{}
	repo := &fakeSessionRepo{}
	dialer := &networktest.FakeDialer{Client: first}
	machine := NewMachine(dialer, repo, nil, DefaultMaxAttempts)

	firstID, err := machine.Start(context.Background(), 42, "+15551234567")
	require.NoError(t, err)

	dialer.Client = second
	secondID, err := machine.Start(context.Background(), 42, "+15557654321")
	require.NoError(t, err)

	assert.NotEqual(t, firstID, secondID)
	assert.Equal(t, 1, machine.InFlight())
	assert.True(t, first.Balanced(), "replaced attempt must release its connection")

	_, verifyErr := machine.VerifyCode(context.Background(), 42, firstID, "12345")
	var appErr *apperr.AppError
	require.ErrorAs(t, verifyErr, &appErr)
	assert.Equal(t, apperr.KindNotFound, appErr.Kind)
}

func TestMachine_VerifyCode_Success(t *testing.T) {
	client := &networktest.FakeClient{ExportToken: "tok-1"}
	machine, repo := newTestMachine(client)

	loginID, err := machine.Start(context.Background(), 42, "+15551234567")
	require.NoError(t, err)

	outcome, err := machine.VerifyCode(context.Background(), 42, loginID, "12345")

	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome.Status)
	require.NotNil(t, outcome.Profile)

	require.Equal(t, 1, repo.savedCount())
	assert.Equal(t, int64(42), repo.saved[0].OwnerID)
	assert.Equal(t, "+15551234567", repo.saved[0].Phone)
	assert.Equal(t, "tok-1", repo.saved[0].SessionToken)

	assert.Equal(t, 0, machine.InFlight())
	assert.True(t, client.Balanced())
}

func TestMachine_VerifyCode_FiveInvalidCodesTerminate(t *testing.T) {
	client := &networktest.FakeClient{
		SignInCodeErrs: []error{
			network.ErrInvalidCode, network.ErrInvalidCode, network.ErrInvalidCode,
			network.ErrInvalidCode, network.ErrInvalidCode,
		},
	}
	machine, repo := newTestMachine(client)

	loginID, err := machine.Start(context.Background(), 42, "+15551234567")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		outcome, verifyErr := machine.VerifyCode(context.Background(), 42, loginID, "00000")
		require.NoError(t, verifyErr)
		assert.Equal(t, OutcomeFailure, outcome.Status)
		assert.Contains(t, outcome.Reason, "attempts remaining")
	}

	outcome, err := machine.VerifyCode(context.Background(), 42, loginID, "00000")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailure, outcome.Status)
	assert.Contains(t, outcome.Reason, "Too many failed attempts")
	assert.Equal(t, 0, machine.InFlight())
	assert.True(t, client.Balanced())

	_, err = machine.VerifyCode(context.Background(), 42, loginID, "00000")
	var appErr *apperr.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindNotFound, appErr.Kind)

	assert.Equal(t, 0, repo.savedCount())
}

func TestMachine_VerifyCode_Expired(t *testing.T) {
	client := &networktest.FakeClient{SignInCodeErrs: []error{network.ErrCodeExpired}}
	machine, repo := newTestMachine(client)

	loginID, err := machine.Start(context.Background(), 42, "+15551234567")
	require.NoError(t, err)

	outcome, err := machine.VerifyCode(context.Background(), 42, loginID, "12345")

	require.NoError(t, err)
	assert.Equal(t, OutcomeFailure, outcome.Status)
	assert.Contains(t, outcome.Reason, "expired")
	assert.Equal(t, 0, machine.InFlight())
	assert.True(t, client.Balanced())
	assert.Equal(t, 0, repo.savedCount())
}

func TestMachine_VerifyCode_NeedPasswordThenVerifyPassword(t *testing.T) {
	client := &networktest.FakeClient{
		SignInCodeErrs: []error{network.ErrPasswordNeeded},
		ExportToken:    "tok-2fa",
	}
	machine, repo := newTestMachine(client)

	loginID, err := machine.Start(context.Background(), 42, "+15551234567")
	require.NoError(t, err)

	outcome, err := machine.VerifyCode(context.Background(), 42, loginID, "12345")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNeedPassword, outcome.Status)
	assert.Equal(t, 1, machine.InFlight(), "attempt must stay alive awaiting the password")
	assert.Equal(t, 0, repo.savedCount())

	outcome, err = machine.VerifyPassword(context.Background(), 42, loginID, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome.Status)

	require.Equal(t, 1, repo.savedCount())
	assert.Equal(t, "tok-2fa", repo.saved[0].SessionToken)
	assert.Equal(t, 0, machine.InFlight())
	assert.True(t, client.Balanced())
}

func TestMachine_VerifyPassword_InvalidIsRetryable(t *testing.T) {
	client := &networktest.FakeClient{
		SignInCodeErrs: []error{network.ErrPasswordNeeded},
		PasswordErr:    network.ErrInvalidPassword,
	}
	machine, _ := newTestMachine(client)

	loginID, err := machine.Start(context.Background(), 42, "+15551234567")
	require.NoError(t, err)

	_, err = machine.VerifyCode(context.Background(), 42, loginID, "12345")
	require.NoError(t, err)

	outcome, err := machine.VerifyPassword(context.Background(), 42, loginID, "wrong")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailure, outcome.Status)
	assert.Contains(t, outcome.Reason, "Invalid password")
	assert.Equal(t, 1, machine.InFlight(), "one bad password must not end the attempt")

	client.PasswordErr = nil
	outcome, err = machine.VerifyPassword(context.Background(), 42, loginID, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome.Status)
}

func TestMachine_VerifyPassword_WithoutNeedPassword(t *testing.T) {
	machine, _ := newTestMachine(&networktest.FakeClient{})

	loginID, err := machine.Start(context.Background(), 42, "+15551234567")
	require.NoError(t, err)

	outcome, err := machine.VerifyPassword(context.Background(), 42, loginID, "hunter2")

	require.NoError(t, err)
	assert.Equal(t, OutcomeFailure, outcome.Status)
	assert.Contains(t, outcome.Reason, "No password was requested")
	assert.Equal(t, 1, machine.InFlight())
}

func TestMachine_VerifyCode_WrongUser(t *testing.T) {
	machine, _ := newTestMachine(&networktest.FakeClient{})

	loginID, err := machine.Start(context.Background(), 42, "+15551234567")
	require.NoError(t, err)

	_, err = machine.VerifyCode(context.Background(), 99, loginID, "12345")

	var appErr *apperr.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindNotFound, appErr.Kind)
}

func TestMachine_Cancel(t *testing.T) {
	client := &networktest.FakeClient{}
	machine, _ := newTestMachine(client)

	_, err := machine.Start(context.Background(), 42, "+15551234567")
	require.NoError(t, err)

	assert.True(t, machine.Cancel(42))
	assert.Equal(t, 0, machine.InFlight())
	assert.True(t, client.Balanced())

	assert.False(t, machine.Cancel(42))
}

func TestMachine_CleanupExpired(t *testing.T) {
	client := &networktest.FakeClient{}
	machine, _ := newTestMachine(client)

	loginID, err := machine.Start(context.Background(), 42, "+15551234567")
	require.NoError(t, err)

	machine.attempts.Mutate(loginID, func(a *Attempt) {
		a.CreatedAt = time.Now().Add(-time.Hour)
	})

	removed := machine.CleanupExpired(10 * time.Minute)

	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, machine.InFlight())
	assert.True(t, client.Balanced())
}
