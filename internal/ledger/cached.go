package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"shortener-core/pkg/cache"
	"shortener-core/pkg/logger"
)

// CachedGateway 在读路径前加一层缓存
// 只缓存已存在的映射: 短码一旦分配不可变, 而"未登记"随时可能变化, 缓存它会让写后读永远看不到新短码
type CachedGateway struct {
	Gateway
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedGateway(inner Gateway, c cache.Cache, ttl time.Duration) *CachedGateway {
	return &CachedGateway{Gateway: inner, cache: c, ttl: ttl}
}

func (g *CachedGateway) ReadKey(ctx context.Context, from *common.Address, urlBody string) (string, error) {
	ck := "key:" + strings.ToLower(fromString(from)) + ":" + urlBody
	return g.read(ctx, ck, func() (string, error) {
		return g.Gateway.ReadKey(ctx, from, urlBody)
	})
}

func (g *CachedGateway) ReadURL(ctx context.Context, key string) (string, error) {
	return g.read(ctx, "url:"+key, func() (string, error) {
		return g.Gateway.ReadURL(ctx, key)
	})
}

func (g *CachedGateway) read(ctx context.Context, ck string, load func() (string, error)) (string, error) {
	var cached string
	err := g.cache.Get(ctx, ck, &cached)
	if err == nil && cached != "" {
		return cached, nil
	}
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		logger.Warn("读缓存失败, 回源查询", zap.String("key", ck), zap.Error(err))
	}

	val, err := load()
	if err != nil || val == "" {
		return val, err
	}
	if err := g.cache.Set(ctx, ck, val, g.ttl); err != nil {
		logger.Warn("写缓存失败", zap.String("key", ck), zap.Error(err))
	}
	return val, nil
}

func fromString(from *common.Address) string {
	if from == nil {
		return "-"
	}
	return from.Hex()
}
