package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Gateway 是与链上合约交互的唯一出口
// 实现方只负责一次网络往返, 不做重试; 错误原样返回给调用方
type Gateway interface {
	// ReadKey 查询 urlBody 已登记的短码, 未登记返回 ""
	// from 为 nil 时以匿名身份调用
	ReadKey(ctx context.Context, from *common.Address, urlBody string) (string, error)
	// ReadURL 查询短码对应的 urlBody, 不存在返回 ""
	ReadURL(ctx context.Context, key string) (string, error)
	// EstimateRegister 估算 register(urlBody) 所需 gas
	EstimateRegister(ctx context.Context, from common.Address, urlBody string) (uint64, error)
	// SubmitRegister 签名并发送 register(urlBody), 返回交易哈希
	SubmitRegister(ctx context.Context, urlBody string, opts TxOpts) (common.Hash, error)
	// Receipt 查询交易回执, 尚未上链返回 (nil, nil)
	Receipt(ctx context.Context, txHash common.Hash) (*Receipt, error)
	Accounts(ctx context.Context) ([]common.Address, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	NetworkID(ctx context.Context) (string, error)
}

// TxOpts 发送交易时的参数
type TxOpts struct {
	From     common.Address
	Gas      uint64
	GasPrice *big.Int
}

// Receipt 交易回执 (简化版)
type Receipt struct {
	TxHash      common.Hash
	Status      uint64
	BlockNumber uint64
	GasUsed     uint64
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == types.ReceiptStatusSuccessful
}

func receiptFrom(r *types.Receipt) *Receipt {
	out := &Receipt{
		TxHash:  r.TxHash,
		Status:  r.Status,
		GasUsed: r.GasUsed,
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	return out
}
