package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"shortener-core/internal/ledger/ledgertest"
	"shortener-core/internal/session"
	"shortener-core/pkg/errno"
)

var alice = common.HexToAddress("0x000000000000000000000000000000000000a11c")

func TestOpenWritable(t *testing.T) {
	gw := &ledgertest.Gateway{}
	gw.On("Accounts", mock.Anything).Return([]common.Address{alice}, nil)
	gw.On("NetworkID", mock.Anything).Return("3", nil)

	s, err := session.Open(context.Background(), gw, "3", session.PolicySnapshot)
	require.NoError(t, err)
	assert.True(t, s.Writable())
	assert.Equal(t, alice, *s.Account())
}

func TestCheckWritable(t *testing.T) {
	tests := []struct {
		name    string
		account *common.Address
		network string
		want    error
	}{
		{"writable", &alice, "3", nil},
		{"no account", nil, "3", errno.ErrNoAccount},
		{"no account wins over wrong network", nil, "1", errno.ErrNoAccount},
		{"wrong network", &alice, "1", errno.ErrWrongNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := session.New(tt.account, tt.network, "3", session.PolicySnapshot)
			err := s.CheckWritable()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestNilSessionIsReadOnly(t *testing.T) {
	var s *session.Session
	assert.ErrorIs(t, s.CheckWritable(), errno.ErrNoAccount)
	assert.False(t, s.Writable())
}

func TestRefreshHonoursPolicy(t *testing.T) {
	gw := &ledgertest.Gateway{}
	gw.On("Accounts", mock.Anything).Return([]common.Address{}, nil)
	gw.On("NetworkID", mock.Anything).Return("3", nil)

	snap := session.New(&alice, "3", "3", session.PolicySnapshot)
	require.NoError(t, snap.Refresh(context.Background(), gw))
	assert.True(t, snap.Writable())
	gw.AssertNotCalled(t, "Accounts", mock.Anything)

	recheck := session.New(&alice, "3", "3", session.PolicyRecheck)
	require.NoError(t, recheck.Refresh(context.Background(), gw))
	assert.Nil(t, recheck.Account())
	assert.False(t, recheck.Writable())
}

func TestOpenGatewayDown(t *testing.T) {
	gw := &ledgertest.Gateway{}
	gw.On("Accounts", mock.Anything).Return(nil, errors.New("dial tcp: refused"))

	_, err := session.Open(context.Background(), gw, "3", session.PolicySnapshot)
	assert.True(t, errors.Is(err, errno.ErrGatewayUnavailable))
}
