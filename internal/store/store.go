package store

import (
	"context"
	"errors"

	"shortener-core/internal/model"
)

// ErrNotFound is returned when no pending request matches the hash.
var ErrNotFound = errors.New("pending request not found")

// PendingStore 记录 PendingRequest 生命周期
// 链上才是事实来源, 这里只是为了重启后能继续等待
type PendingStore interface {
	Save(ctx context.Context, req *model.PendingRequest) error
	// Finish 写入终态 (confirmed / reverted / abandoned)
	Finish(ctx context.Context, txHash string, status string, blockNumber, gasUsed uint64) error
	Get(ctx context.Context, txHash string) (*model.PendingRequest, error)
	// ListOpen 返回仍处于 pending 的请求, 按创建时间排序
	ListOpen(ctx context.Context) ([]model.PendingRequest, error)
}
