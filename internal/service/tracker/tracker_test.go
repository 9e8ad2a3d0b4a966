package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortener-core/internal/ledger"
	"shortener-core/internal/model"
	"shortener-core/internal/poll"
	"shortener-core/pkg/errno"
)

type fakeAwaiter struct {
	pending []model.PendingRequest

	mu      sync.Mutex
	awaited []common.Hash
}

func (f *fakeAwaiter) Pending(ctx context.Context) ([]model.PendingRequest, error) {
	return f.pending, nil
}

func (f *fakeAwaiter) AwaitConfirmation(ctx context.Context, h common.Hash, cfg poll.Config) (*ledger.Receipt, error) {
	f.mu.Lock()
	f.awaited = append(f.awaited, h)
	f.mu.Unlock()
	if h == common.HexToHash("0x2") {
		return &ledger.Receipt{TxHash: h}, errno.ErrReverted
	}
	return &ledger.Receipt{TxHash: h, Status: 1, BlockNumber: 7}, nil
}

func TestTrackerAwaitsEveryPendingRequest(t *testing.T) {
	f := &fakeAwaiter{pending: []model.PendingRequest{
		{TxHash: common.HexToHash("0x1").Hex()},
		{TxHash: common.HexToHash("0x2").Hex()},
		{TxHash: common.HexToHash("0x3").Hex()},
	}}
	tr := New(f, poll.Config{Interval: time.Millisecond}, 2)

	require.NoError(t, tr.Start(context.Background()))
	tr.Wait()

	assert.ElementsMatch(t, []common.Hash{
		common.HexToHash("0x1"),
		common.HexToHash("0x2"),
		common.HexToHash("0x3"),
	}, f.awaited)
}

func TestTrackerNothingPending(t *testing.T) {
	tr := New(&fakeAwaiter{}, poll.Config{}, 0)
	require.NoError(t, tr.Start(context.Background()))
	tr.Wait()
}
