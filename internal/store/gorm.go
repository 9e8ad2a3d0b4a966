package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shortener-core/internal/model"
)

// GormStore 基于 Postgres 的持久化实现
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Save(ctx context.Context, req *model.PendingRequest) error {
	// 同一 tx_hash 重复保存时更新状态字段 (重启后重新追踪的场景)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(req).Error
}

func (s *GormStore) Finish(ctx context.Context, txHash string, status string, blockNumber, gasUsed uint64) error {
	res := s.db.WithContext(ctx).Model(&model.PendingRequest{}).
		Where("tx_hash = ?", txHash).
		Updates(map[string]interface{}{
			"status":       status,
			"block_number": blockNumber,
			"gas_used":     gasUsed,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, txHash string) (*model.PendingRequest, error) {
	var req model.PendingRequest
	err := s.db.WithContext(ctx).Where("tx_hash = ?", txHash).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// listPageSize 每次从数据库读取的 pending 记录条数
const listPageSize = 100

// ListOpen 按 id (即创建顺序) 分页读取全部 pending 记录
func (s *GormStore) ListOpen(ctx context.Context) ([]model.PendingRequest, error) {
	return collectPages(listPageSize, func(afterID uint64, limit int) ([]model.PendingRequest, error) {
		var page []model.PendingRequest
		err := s.db.WithContext(ctx).
			Where("status = ? AND id > ?", model.StatusPending, afterID).
			Order("id").
			Limit(limit).
			Find(&page).Error
		return page, err
	})
}

// collectPages 以 keyset 方式翻页, 直到某一页不满 pageSize
func collectPages(pageSize int, fetch func(afterID uint64, limit int) ([]model.PendingRequest, error)) ([]model.PendingRequest, error) {
	var (
		out     []model.PendingRequest
		afterID uint64
	)
	for {
		page, err := fetch(afterID, pageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < pageSize {
			return out, nil
		}
		afterID = page[len(page)-1].ID
	}
}
