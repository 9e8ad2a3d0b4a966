package registration_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"shortener-core/internal/ledger"
	"shortener-core/internal/ledger/ledgertest"
	"shortener-core/internal/model"
	"shortener-core/internal/poll"
	"shortener-core/internal/service/registration"
	"shortener-core/internal/service/transaction"
	"shortener-core/internal/session"
	"shortener-core/pkg/errno"
)

var (
	alice  = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	txHash = common.HexToHash("0xbeef")
)

func testConfig() registration.Config {
	return registration.Config{
		Confirm: poll.Config{Interval: time.Millisecond, Multiplier: 1, Timeout: time.Second},
		Resolve: poll.Config{Interval: time.Millisecond, Multiplier: 1, MaxAttempts: 5, WaitFirst: true},
	}
}

func writable() *session.Session {
	return session.New(&alice, "3", "3", session.PolicySnapshot)
}

type recorder struct {
	mu    sync.Mutex
	snaps []registration.Snapshot
}

func (r *recorder) observe(s registration.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) states() []registration.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]registration.State, len(r.snaps))
	for i, s := range r.snaps {
		out[i] = s.State
	}
	return out
}

func newMachine(gw *ledgertest.Gateway, sess *session.Session) (*registration.Machine, *recorder) {
	ctrl := transaction.NewController(gw)
	m := registration.NewMachine(ctrl, sess, registration.WithConfig(testConfig()))
	rec := &recorder{}
	m.Subscribe(rec.observe)
	return m, rec
}

// Scenario A
func TestRegisterResolves(t *testing.T) {
	gw := &ledgertest.Gateway{}
	gw.On("ReadKey", mock.Anything, mock.Anything, "example.com/page").Return("", nil).Twice()
	gw.On("ReadKey", mock.Anything, mock.Anything, "example.com/page").Return("abc123", nil)
	gw.On("EstimateRegister", mock.Anything, alice, "example.com/page").Return(uint64(21000), nil)
	gw.On("GasPrice", mock.Anything).Return(big.NewInt(1_000_000_000), nil)
	gw.On("SubmitRegister", mock.Anything, "example.com/page", mock.MatchedBy(func(o ledger.TxOpts) bool {
		return o.Gas == 31000 && o.From == alice
	})).Return(txHash, nil)
	gw.On("Receipt", mock.Anything, txHash).Return(ledgertest.Success(txHash, 25000), nil)

	m, rec := newMachine(gw, writable())
	out, err := m.Register(context.Background(), "https://example.com/page")
	require.NoError(t, err)

	assert.Equal(t, registration.Resolved, out.State)
	assert.False(t, out.Waiting)
	assert.Equal(t, "abc123", out.Key)
	assert.Equal(t, txHash.Hex(), out.TxHash)
	assert.Equal(t, registration.Resolved, m.State())
	assert.True(t, m.CanSubmit())
	assert.Equal(t, []registration.State{
		registration.Checking,
		registration.Submitting,
		registration.AwaitingConfirmation,
		registration.Resolved,
	}, rec.states())
	gw.AssertExpectations(t)
}

// Scenario B
func TestRegisterAlreadyRegistered(t *testing.T) {
	gw := &ledgertest.Gateway{}
	gw.On("ReadKey", mock.Anything, mock.Anything, "example.com").Return("xyz", nil)

	m, _ := newMachine(gw, writable())
	out, err := m.Register(context.Background(), "http://example.com")

	assert.ErrorIs(t, err, errno.ErrAlreadyRegistered)
	assert.Equal(t, "xyz", out.Key)
	assert.Equal(t, registration.Idle, m.State())
	gw.AssertNotCalled(t, "EstimateRegister", mock.Anything, mock.Anything, mock.Anything)
	gw.AssertNotCalled(t, "SubmitRegister", mock.Anything, mock.Anything, mock.Anything)
}

// Scenario C
func TestRegisterReverted(t *testing.T) {
	gw := &ledgertest.Gateway{}
	gw.On("ReadKey", mock.Anything, mock.Anything, mock.Anything).Return("", nil)
	gw.On("EstimateRegister", mock.Anything, mock.Anything, mock.Anything).Return(uint64(21000), nil)
	gw.On("GasPrice", mock.Anything).Return(big.NewInt(1), nil)
	gw.On("SubmitRegister", mock.Anything, mock.Anything, mock.Anything).Return(txHash, nil)
	gw.On("Receipt", mock.Anything, txHash).Return(ledgertest.Reverted(txHash), nil)

	m, rec := newMachine(gw, writable())
	out, err := m.Register(context.Background(), "example.com")

	assert.ErrorIs(t, err, errno.ErrReverted)
	assert.Equal(t, registration.Failed, out.State)
	assert.False(t, out.Waiting)
	assert.Empty(t, out.Key)
	assert.Equal(t, registration.Idle, m.State())
	states := rec.states()
	assert.Equal(t, []registration.State{registration.Failed, registration.Idle}, states[len(states)-2:])
}

// Scenario D
func TestRegisterNoAccount(t *testing.T) {
	gw := &ledgertest.Gateway{}
	m, rec := newMachine(gw, session.New(nil, "3", "3", session.PolicySnapshot))

	_, err := m.Register(context.Background(), "example.com")

	assert.ErrorIs(t, err, errno.ErrNoAccount)
	assert.Empty(t, gw.Calls)
	assert.Empty(t, rec.states())
	assert.Equal(t, registration.Idle, m.State())
}

func TestRegisterWrongNetwork(t *testing.T) {
	gw := &ledgertest.Gateway{}
	m, _ := newMachine(gw, session.New(&alice, "1", "3", session.PolicySnapshot))

	_, err := m.Register(context.Background(), "example.com")
	assert.ErrorIs(t, err, errno.ErrWrongNetwork)
	assert.Empty(t, gw.Calls)
}

func TestRegisterInvalidURL(t *testing.T) {
	gw := &ledgertest.Gateway{}
	m, _ := newMachine(gw, writable())

	_, err := m.Register(context.Background(), "https://")
	assert.ErrorIs(t, err, errno.ErrInvalidURL)
	assert.Empty(t, gw.Calls)
}

func TestRegisterRecheckPolicy(t *testing.T) {
	gw := &ledgertest.Gateway{}
	gw.On("Accounts", mock.Anything).Return([]common.Address{}, nil)
	gw.On("NetworkID", mock.Anything).Return("3", nil)

	sess := session.New(&alice, "3", "3", session.PolicyRecheck)
	m := registration.NewMachine(transaction.NewController(gw), sess,
		registration.WithConfig(testConfig()),
		registration.WithIdentitySource(gw),
	)

	_, err := m.Register(context.Background(), "example.com")
	assert.ErrorIs(t, err, errno.ErrNoAccount, "account removed since session open")
	gw.AssertNotCalled(t, "ReadKey", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterReadConsistencyTimeout(t *testing.T) {
	gw := &ledgertest.Gateway{}
	gw.On("ReadKey", mock.Anything, mock.Anything, mock.Anything).Return("", nil)
	gw.On("EstimateRegister", mock.Anything, mock.Anything, mock.Anything).Return(uint64(21000), nil)
	gw.On("GasPrice", mock.Anything).Return(big.NewInt(1), nil)
	gw.On("SubmitRegister", mock.Anything, mock.Anything, mock.Anything).Return(txHash, nil)
	gw.On("Receipt", mock.Anything, txHash).Return(ledgertest.Success(txHash, 25000), nil)

	m, _ := newMachine(gw, writable())
	out, err := m.Register(context.Background(), "example.com")

	assert.ErrorIs(t, err, errno.ErrReadConsistencyTimeout)
	assert.Equal(t, registration.Failed, out.State)
	assert.Equal(t, registration.Idle, m.State())
	// one duplicate check plus MaxAttempts resolve polls
	gw.AssertNumberOfCalls(t, "ReadKey", 1+testConfig().Resolve.MaxAttempts)
}

// fakeController fails at a chosen step.
type fakeController struct {
	resolveErr  error
	estimateErr error
	submitErr   error
	awaitErr    error
	block       chan struct{}
}

func (f *fakeController) ResolveKey(ctx context.Context, sess *session.Session, urlBody string) (string, error) {
	return "", f.resolveErr
}

func (f *fakeController) EstimateCost(ctx context.Context, sess *session.Session, urlBody string) (uint64, error) {
	return 21000, f.estimateErr
}

func (f *fakeController) Submit(ctx context.Context, sess *session.Session, urlBody string, cost uint64) (*model.PendingRequest, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &model.PendingRequest{TxHash: txHash.Hex(), URLBody: urlBody}, nil
}

func (f *fakeController) AwaitConfirmation(ctx context.Context, h common.Hash, cfg poll.Config) (*ledger.Receipt, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.awaitErr != nil {
		return nil, f.awaitErr
	}
	return ledgertest.Success(h, 21000), nil
}

func TestRegisterFailuresReturnToIdle(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		ctrl *fakeController
		want error
	}{
		{"duplicate check", &fakeController{resolveErr: errno.Wrap(errno.ErrGatewayUnavailable, boom)}, errno.ErrGatewayUnavailable},
		{"estimate", &fakeController{estimateErr: errno.Wrap(errno.ErrEstimation, boom)}, errno.ErrEstimation},
		{"submit", &fakeController{submitErr: errno.Wrap(errno.ErrSubmission, boom)}, errno.ErrSubmission},
		{"confirmation timeout", &fakeController{awaitErr: errno.Wrap(errno.ErrConfirmationTimeout, boom)}, errno.ErrConfirmationTimeout},
		{"receipt transport", &fakeController{awaitErr: errno.Wrap(errno.ErrGatewayUnavailable, boom)}, errno.ErrGatewayUnavailable},
		{"reverted", &fakeController{awaitErr: errno.ErrReverted}, errno.ErrReverted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := registration.NewMachine(tt.ctrl, writable(), registration.WithConfig(testConfig()))
			rec := &recorder{}
			m.Subscribe(rec.observe)

			out, err := m.Register(context.Background(), "example.com")
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, registration.Failed, out.State)
			assert.False(t, out.Waiting)

			final := m.Snapshot()
			assert.Equal(t, registration.Idle, final.State)
			assert.False(t, final.Waiting)
			assert.ErrorIs(t, final.Err, tt.want)
			assert.True(t, m.CanSubmit())

			states := rec.states()
			require.GreaterOrEqual(t, len(states), 2)
			assert.Equal(t, []registration.State{registration.Failed, registration.Idle}, states[len(states)-2:])
		})
	}
}

func TestRegisterBusy(t *testing.T) {
	ctrl := &fakeController{block: make(chan struct{})}
	m := registration.NewMachine(ctrl, writable(), registration.WithConfig(testConfig()))

	waiting := make(chan struct{})
	var once sync.Once
	m.Subscribe(func(s registration.Snapshot) {
		if s.Waiting {
			once.Do(func() { close(waiting) })
		}
	})

	done := make(chan error, 1)
	go func() {
		_, err := m.Register(context.Background(), "example.com")
		done <- err
	}()

	<-waiting
	assert.False(t, m.CanSubmit())
	assert.True(t, m.Snapshot().Waiting)

	_, err := m.Register(context.Background(), "other.org")
	assert.ErrorIs(t, err, errno.ErrBusy)

	close(ctrl.block)
	// fakeController never returns a key
	assert.ErrorIs(t, <-done, errno.ErrReadConsistencyTimeout)
	assert.True(t, m.CanSubmit())
}

type denyLock struct{}

func (denyLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return false, nil
}

func (denyLock) Release(ctx context.Context, key string) error { return nil }

func TestRegisterLockedElsewhere(t *testing.T) {
	ctrl := &fakeController{}
	m := registration.NewMachine(ctrl, writable(),
		registration.WithConfig(testConfig()),
		registration.WithLock(denyLock{}),
	)

	_, err := m.Register(context.Background(), "example.com")
	assert.ErrorIs(t, err, errno.ErrBusy)
	assert.Equal(t, registration.Idle, m.State())
}

func TestRegisterCancelled(t *testing.T) {
	ctrl := &fakeController{block: make(chan struct{})}
	m := registration.NewMachine(ctrl, writable(), registration.WithConfig(testConfig()))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	out, err := m.Register(ctx, "example.com")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, registration.Failed, out.State)
	assert.False(t, m.Snapshot().Waiting)
}

func TestStartRunsInBackground(t *testing.T) {
	ctrl := &fakeController{block: make(chan struct{})}
	m := registration.NewMachine(ctrl, writable(), registration.WithConfig(testConfig()))

	require.NoError(t, m.Start(context.Background(), "example.com"))
	assert.False(t, m.CanSubmit())
	assert.ErrorIs(t, m.Start(context.Background(), "example.com"), errno.ErrBusy)

	close(ctrl.block)
	require.Eventually(t, m.CanSubmit, time.Second, time.Millisecond)
	assert.Equal(t, registration.Idle, m.State())
}

func TestStartRejectsSynchronously(t *testing.T) {
	m := registration.NewMachine(&fakeController{}, session.New(nil, "3", "3", session.PolicySnapshot))

	assert.ErrorIs(t, m.Start(context.Background(), "example.com"), errno.ErrNoAccount)
	assert.True(t, m.CanSubmit())
}
