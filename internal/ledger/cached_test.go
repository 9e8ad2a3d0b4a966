package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"shortener-core/internal/ledger"
	"shortener-core/internal/ledger/ledgertest"
	"shortener-core/pkg/cache"
)

func TestCachedGatewayCachesHitsOnly(t *testing.T) {
	ctx := context.Background()
	inner := &ledgertest.Gateway{}
	inner.On("ReadKey", mock.Anything, mock.Anything, "example.com").Return("", nil).Once()
	inner.On("ReadKey", mock.Anything, mock.Anything, "example.com").Return("abc123", nil).Once()

	gw := ledger.NewCachedGateway(inner, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute)

	// miss 不缓存
	key, err := gw.ReadKey(ctx, nil, "example.com")
	require.NoError(t, err)
	assert.Equal(t, "", key)

	key, err = gw.ReadKey(ctx, nil, "example.com")
	require.NoError(t, err)
	assert.Equal(t, "abc123", key)

	// 第三次命中缓存, 不再回源
	key, err = gw.ReadKey(ctx, nil, "example.com")
	require.NoError(t, err)
	assert.Equal(t, "abc123", key)

	inner.AssertNumberOfCalls(t, "ReadKey", 2)
}

func TestCachedGatewayDelegatesWrites(t *testing.T) {
	inner := &ledgertest.Gateway{}
	inner.On("NetworkID", mock.Anything).Return("3", nil)

	gw := ledger.NewCachedGateway(inner, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute)
	id, err := gw.NetworkID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3", id)
}
