// Package tracker resumes confirmation tracking for requests left pending by a
// previous run.
package tracker

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"shortener-core/internal/ledger"
	"shortener-core/internal/model"
	"shortener-core/internal/poll"
	"shortener-core/pkg/errno"
	"shortener-core/pkg/logger"
)

type Awaiter interface {
	Pending(ctx context.Context) ([]model.PendingRequest, error)
	AwaitConfirmation(ctx context.Context, txHash common.Hash, cfg poll.Config) (*ledger.Receipt, error)
}

// Tracker 启动时扫描一次未确认的请求, 交给 worker 池并发等待回执
// Fetcher -> jobs -> Workers
type Tracker struct {
	ctrl        Awaiter
	policy      poll.Config
	workerCount int
	wg          sync.WaitGroup
}

func New(ctrl Awaiter, policy poll.Config, workerCount int) *Tracker {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Tracker{
		ctrl:        ctrl,
		policy:      policy,
		workerCount: workerCount,
	}
}

// Start 读取 pending 列表并启动 workers, 不阻塞
func (t *Tracker) Start(ctx context.Context) error {
	list, err := t.ctrl.Pending(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return nil
	}
	logger.Info("恢复追踪未确认交易", zap.Int("count", len(list)), zap.Int("workers", t.workerCount))

	jobs := make(chan model.PendingRequest)
	for i := 0; i < t.workerCount; i++ {
		t.wg.Add(1)
		go t.worker(ctx, i, jobs)
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer close(jobs)
		for _, req := range list {
			select {
			case jobs <- req:
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Wait blocks until every worker has exited.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) worker(ctx context.Context, id int, jobs <-chan model.PendingRequest) {
	defer t.wg.Done()
	for req := range jobs {
		r, err := t.ctrl.AwaitConfirmation(ctx, common.HexToHash(req.TxHash), t.policy)
		switch {
		case err == nil:
			logger.Info("恢复追踪: 交易已确认", zap.Int("worker", id), zap.String("tx", req.TxHash), zap.Uint64("block", r.BlockNumber))
		case errors.Is(err, errno.ErrReverted):
			logger.Warn("恢复追踪: 交易执行失败", zap.Int("worker", id), zap.String("tx", req.TxHash))
		case ctx.Err() != nil:
			return
		default:
			logger.Warn("恢复追踪失败", zap.Int("worker", id), zap.String("tx", req.TxHash), zap.Error(err))
		}
	}
}
