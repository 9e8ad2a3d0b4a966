// Package bootstrap wires the gateway, stores, session and services from config.
// Both shortener-server and shortener-cli build on it.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shortener-core/internal/ledger"
	"shortener-core/internal/model"
	"shortener-core/internal/poll"
	"shortener-core/internal/service/mq"
	"shortener-core/internal/service/registration"
	"shortener-core/internal/service/transaction"
	"shortener-core/internal/session"
	"shortener-core/internal/store"
	"shortener-core/pkg/cache"
	"shortener-core/pkg/config"
	"shortener-core/pkg/database"
	"shortener-core/pkg/logger"
	"shortener-core/pkg/utils/lock"
)

type Components struct {
	Eth        *ledger.EthGateway
	Gateway    ledger.Gateway // Eth, 开启缓存时包一层 CachedGateway
	Session    *session.Session
	Store      store.PendingStore
	Controller *transaction.Controller
	Machine    *registration.Machine
	Redis      *redis.Client // redis.enabled=false 时为 nil

	closers []func()
}

// Build 按配置依次初始化各组件; 任一步失败会释放已经初始化的资源
func Build(ctx context.Context, cfg config.Config) (*Components, error) {
	c := &Components{}
	if err := c.build(ctx, cfg); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Components) build(ctx context.Context, cfg config.Config) error {
	// 1. 合约描述
	artifact, err := ledger.LoadArtifact(cfg.Chain.ArtifactPath)
	if err != nil {
		return fmt.Errorf("load artifact: %w", err)
	}

	// 2. 签名账户: 本地 keystore 或节点托管账户
	var signer *ledger.LocalSigner
	if cfg.Chain.KeystorePath != "" {
		signer, err = ledger.LoadKeystore(cfg.Chain.KeystorePath, cfg.Chain.Password)
		if err != nil {
			return fmt.Errorf("open keystore: %w", err)
		}
		logger.Info("使用本地 keystore 签名", zap.String("account", signer.Address.Hex()))
	}

	// 3. 连接节点, 按网络 ID 解析合约地址
	c.Eth, err = ledger.Dial(ctx, cfg.Chain.RpcUrl, artifact, signer)
	if err != nil {
		return err
	}
	c.closers = append(c.closers, c.Eth.Close)
	logger.Info("已连接节点", zap.String("rpc", cfg.Chain.RpcUrl), zap.String("contract", c.Eth.Contract().Hex()))

	// 4. Redis (缓存 L2 / 分布式锁 / MQ)
	if cfg.Redis.Enabled {
		c.Redis, err = database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		rdb := c.Redis
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}

	// 5. 读路径缓存
	c.Gateway = c.Eth
	if cfg.Cache.Enabled {
		var readCache cache.Cache = cache.NewMemoryCache(cfg.Cache.LocalTTL, 2*cfg.Cache.LocalTTL)
		if c.Redis != nil {
			readCache = cache.NewMultiLevelCache(readCache, cache.NewRedisCache(c.Redis, "shortener:"), cfg.Cache.LocalTTL)
		}
		c.Gateway = ledger.NewCachedGateway(c.Eth, readCache, cfg.Cache.TTL)
	}

	// 6. PendingRequest 存储
	c.Store = store.NewMemoryStore()
	if cfg.DB.Enabled {
		db, err := database.ConnectPostgres(database.DSN(cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name))
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			c.closers = append(c.closers, func() { _ = sqlDB.Close() })
		}
		// 开发环境直接 AutoMigrate, 生产环境使用 cmd/migrate
		if cfg.App.Env == "development" {
			if err := db.AutoMigrate(model.AllModels()...); err != nil {
				return fmt.Errorf("auto migrate: %w", err)
			}
			logger.Info("数据库自动迁移完成 (Dev Mode)")
		}
		c.Store = store.NewGormStore(db)
	}

	// 7. 会话
	policy := session.Policy(cfg.Chain.IdentityPolicy)
	c.Session, err = session.Open(ctx, c.Eth, cfg.Chain.ExpectedNetworkID, policy)
	if err != nil {
		return err
	}
	warnReadOnly(c.Session)

	// 8. 服务
	c.Controller = transaction.NewController(c.Gateway, transaction.WithStore(c.Store))
	opts := []registration.Option{registration.WithConfig(MachineConfig(cfg.Tx))}
	if c.Session.Policy() == session.PolicyRecheck {
		opts = append(opts, registration.WithIdentitySource(c.Eth))
	}
	if c.Redis != nil {
		opts = append(opts, registration.WithLock(lock.NewRedisLock(c.Redis)))
	}
	c.Machine = registration.NewMachine(c.Controller, c.Session, opts...)
	return nil
}

// Close releases resources in reverse order of acquisition.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// MachineConfig converts the tx section into polling policies.
// 非正数的配置回退到默认值, 保证两个轮询都有界且有间隔.
func MachineConfig(tx config.TxConfig) registration.Config {
	cfg := registration.DefaultConfig()
	cfg.Confirm = ConfirmPolicy(tx)
	if tx.ResolveDelay > 0 {
		cfg.Resolve.Interval = tx.ResolveDelay
	}
	if tx.ResolveMaxAttempts > 0 {
		cfg.Resolve.MaxAttempts = tx.ResolveMaxAttempts
	}
	// 锁需要覆盖整个等待确认的过程
	cfg.LockTTL = cfg.Confirm.Timeout + 5*time.Minute
	return cfg
}

// ConfirmPolicy is the receipt polling policy for the tx section.
func ConfirmPolicy(tx config.TxConfig) poll.Config {
	p := transaction.DefaultConfirmPolicy()
	if tx.PollInterval > 0 {
		p.Interval = tx.PollInterval
	}
	if tx.PollMaxInterval > 0 {
		p.MaxInterval = tx.PollMaxInterval
	}
	if tx.PollMultiplier >= 1 {
		p.Multiplier = tx.PollMultiplier
	}
	if tx.ConfirmTimeout > 0 {
		p.Timeout = tx.ConfirmTimeout
	}
	return p
}

// NewProducer picks the event producer for redis.mq_type.
func NewProducer(cfg config.Config, rdb *redis.Client) (mq.Producer, error) {
	switch cfg.Redis.MQType {
	case "kafka":
		return mq.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("mq_type redis requires redis.enabled")
		}
		return mq.NewRedisProducer(rdb, 10000), nil
	case "", "none":
		return mq.NopProducer{}, nil
	default:
		return nil, fmt.Errorf("unknown mq_type %q", cfg.Redis.MQType)
	}
}

// 没有账户或网络不匹配时只能查询, 启动时给出提示
func warnReadOnly(s *session.Session) {
	if err := s.CheckWritable(); err != nil {
		logger.Warn("当前会话只读, 无法注册新短链",
			zap.String("network", s.NetworkID()),
			zap.String("expected_network", s.ExpectedNetworkID()),
			zap.Error(err),
		)
	}
}

// NewConsumer picks the event consumer for redis.mq_type.
func NewConsumer(cfg config.Config, rdb *redis.Client, group, name string) (mq.Consumer, error) {
	switch cfg.Redis.MQType {
	case "kafka":
		return mq.NewKafkaConsumer(cfg.Kafka.Brokers, group), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("mq_type redis requires redis.enabled")
		}
		return mq.NewRedisConsumer(rdb, group, name), nil
	default:
		return nil, fmt.Errorf("mq_type %q has no consumer", cfg.Redis.MQType)
	}
}
