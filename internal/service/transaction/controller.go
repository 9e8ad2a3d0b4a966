package transaction

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shortener-core/internal/ledger"
	"shortener-core/internal/model"
	"shortener-core/internal/poll"
	"shortener-core/internal/session"
	"shortener-core/internal/store"
	"shortener-core/pkg/errno"
	"shortener-core/pkg/logger"
	"shortener-core/pkg/monitor"
	"shortener-core/pkg/units"
)

// SafetyMargin is added to every gas estimate before submission.
const SafetyMargin uint64 = 10000

// GasLimit returns the gas limit submitted for an estimate.
func GasLimit(estimate uint64) uint64 {
	return estimate + SafetyMargin
}

// DefaultConfirmPolicy 默认回执轮询策略: 100ms 起步, 1.5 倍退避, 上限 5s, 10 分钟超时
func DefaultConfirmPolicy() poll.Config {
	return poll.Config{
		Interval:    100 * time.Millisecond,
		MaxInterval: 5 * time.Second,
		Multiplier:  1.5,
		Timeout:     10 * time.Minute,
		WaitFirst:   true,
	}
}

// Controller 负责 register 交易的完整生命周期: 估算 -> 发送 -> 等待回执
// 每一步独立调用、独立失败, 重试策略由调用方决定
type Controller struct {
	gw      ledger.Gateway
	pending store.PendingStore
}

type Option func(*Controller)

// WithStore replaces the default in-memory pending store.
func WithStore(s store.PendingStore) Option {
	return func(c *Controller) {
		c.pending = s
	}
}

func NewController(gw ledger.Gateway, opts ...Option) *Controller {
	c := &Controller{
		gw:      gw,
		pending: store.NewMemoryStore(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveKey 查询 urlBody 对应的短码, 未登记返回 ""
func (c *Controller) ResolveKey(ctx context.Context, sess *session.Session, urlBody string) (string, error) {
	var from *common.Address
	if sess != nil {
		from = sess.Account()
	}

	key, err := c.gw.ReadKey(ctx, from, urlBody)
	if err != nil {
		monitor.ObserveResolve("error")
		return "", errno.Wrap(errno.ErrGatewayUnavailable, err)
	}
	if key == "" {
		monitor.ObserveResolve("miss")
	} else {
		monitor.ObserveResolve("hit")
	}
	return key, nil
}

// ResolveURL 查询短码对应的 urlBody, 不存在返回 ""
func (c *Controller) ResolveURL(ctx context.Context, key string) (string, error) {
	body, err := c.gw.ReadURL(ctx, key)
	if err != nil {
		return "", errno.Wrap(errno.ErrGatewayUnavailable, err)
	}
	return body, nil
}

// EstimateCost 估算 register(urlBody) 的 gas. 结果与 payload 相关, 不做缓存
func (c *Controller) EstimateCost(ctx context.Context, sess *session.Session, urlBody string) (uint64, error) {
	if err := sess.CheckWritable(); err != nil {
		return 0, err
	}

	gas, err := c.gw.EstimateRegister(ctx, *sess.Account(), urlBody)
	if err != nil {
		return 0, errno.Wrap(errno.ErrEstimation, err)
	}
	logger.Debug("gas 估算完成", zap.String("url", urlBody), zap.Uint64("gas", gas))
	return gas, nil
}

// Submit 以 cost + SafetyMargin 作为 gas limit、当前平均 gas price 发送交易
// 账户检查在任何网络调用之前完成
func (c *Controller) Submit(ctx context.Context, sess *session.Session, urlBody string, cost uint64) (*model.PendingRequest, error) {
	if err := sess.CheckWritable(); err != nil {
		return nil, err
	}
	if cost > math.MaxUint64-SafetyMargin {
		return nil, errno.Wrapf(errno.ErrSubmission, "gas estimate %d overflows", cost)
	}
	from := *sess.Account()

	// 1. 当前平均 gas price
	price, err := c.gw.GasPrice(ctx)
	if err != nil {
		return nil, errno.Wrap(errno.ErrSubmission, err)
	}

	// 2. 发送交易
	limit := GasLimit(cost)
	hash, err := c.gw.SubmitRegister(ctx, urlBody, ledger.TxOpts{
		From:     from,
		Gas:      limit,
		GasPrice: price,
	})
	if err != nil {
		return nil, errno.Wrap(errno.ErrSubmission, err)
	}

	// 3. 记录 PendingRequest; 链上是事实来源, 记录失败不影响交易本身
	req := &model.PendingRequest{
		TxHash:       hash.Hex(),
		URLBody:      urlBody,
		Account:      from.Hex(),
		EstimatedGas: cost,
		GasLimit:     limit,
		GasPrice:     decimal.NewFromBigInt(price, 0),
		Status:       model.StatusPending,
	}
	if err := c.pending.Save(ctx, req); err != nil {
		logger.Warn("保存 PendingRequest 失败", zap.String("tx", req.TxHash), zap.Error(err))
	}

	logger.Info("交易已发送",
		zap.String("tx", req.TxHash),
		zap.String("from", req.Account),
		zap.Uint64("gas_limit", limit),
		zap.String("gas_price_gwei", units.ToGwei(price).String()),
		zap.String("max_fee_eth", units.ToEther(units.FeeWei(limit, price)).String()),
	)
	return req, nil
}

// AwaitConfirmation 轮询交易回执直到终态
// - 网络错误: 立即返回 ErrGatewayUnavailable, 记录保持 pending, 可稍后继续等待
// - 超时 / 取消: 记录标记为 abandoned
// - 回执 reverted: 返回回执与 ErrReverted
func (c *Controller) AwaitConfirmation(ctx context.Context, txHash common.Hash, cfg poll.Config) (*ledger.Receipt, error) {
	start := time.Now()
	// 终态写入不受调用方取消影响
	bg := context.WithoutCancel(ctx)

	receipt, err := poll.Until(ctx, cfg, func(ctx context.Context, attempt int) (*ledger.Receipt, bool, error) {
		monitor.ObserveReceiptPoll()
		r, err := c.gw.Receipt(ctx, txHash)
		if err != nil {
			return nil, false, errno.Wrap(errno.ErrGatewayUnavailable, err)
		}
		if r == nil {
			logger.Debug("交易尚未上链", zap.String("tx", txHash.Hex()), zap.Int("attempt", attempt))
		}
		return r, r != nil, nil
	})

	switch {
	case errors.Is(err, poll.ErrTimeout):
		c.finish(bg, txHash, model.StatusAbandoned, nil)
		return nil, errno.Wrapf(errno.ErrConfirmationTimeout, "tx %s after %s", txHash.Hex(), cfg.Timeout)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.finish(bg, txHash, model.StatusAbandoned, nil)
		return nil, err
	case err != nil:
		return nil, err
	}

	monitor.ObserveConfirmation(time.Since(start).Seconds(), receipt.GasUsed)
	if !receipt.Succeeded() {
		c.finish(bg, txHash, model.StatusReverted, receipt)
		logger.Warn("交易执行失败 (reverted)", zap.String("tx", txHash.Hex()), zap.Uint64("block", receipt.BlockNumber))
		return receipt, errno.Wrapf(errno.ErrReverted, "tx %s", txHash.Hex())
	}

	c.finish(bg, txHash, model.StatusConfirmed, receipt)
	logger.Info("交易已确认",
		zap.String("tx", txHash.Hex()),
		zap.Uint64("block", receipt.BlockNumber),
		zap.Uint64("gas_used", receipt.GasUsed),
	)
	return receipt, nil
}

// Pending lists requests that have not reached a terminal outcome.
func (c *Controller) Pending(ctx context.Context) ([]model.PendingRequest, error) {
	return c.pending.ListOpen(ctx)
}

func (c *Controller) finish(ctx context.Context, txHash common.Hash, status string, r *ledger.Receipt) {
	var block, gasUsed uint64
	if r != nil {
		block, gasUsed = r.BlockNumber, r.GasUsed
	}
	err := c.pending.Finish(ctx, txHash.Hex(), status, block, gasUsed)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		logger.Warn("更新 PendingRequest 失败", zap.String("tx", txHash.Hex()), zap.Error(err))
	}
}
