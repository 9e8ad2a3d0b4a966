package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PendingRequest 状态
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusReverted  = "reverted"
	StatusAbandoned = "abandoned" // 客户端放弃等待 (超时 / 取消)
)

// PendingRequest 已被节点接受、等待上链确认的 register 交易
type PendingRequest struct {
	ID           uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TxHash       string          `gorm:"type:varchar(66);uniqueIndex;not null" json:"tx_hash"`
	URLBody      string          `gorm:"type:text;not null" json:"url_body"`
	Account      string          `gorm:"type:varchar(42);not null;index" json:"account"`
	EstimatedGas uint64          `gorm:"not null" json:"estimated_gas"`
	GasLimit     uint64          `gorm:"not null" json:"gas_limit"` // EstimatedGas + 安全余量
	GasPrice     decimal.Decimal `gorm:"type:decimal(40,0);not null" json:"gas_price"`
	Status       string          `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	BlockNumber  uint64          `json:"block_number"`
	GasUsed      uint64          `json:"gas_used"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (PendingRequest) TableName() string {
	return "pending_requests"
}

// Open reports whether the request still awaits a terminal outcome.
func (p *PendingRequest) Open() bool {
	return p.Status == StatusPending
}
