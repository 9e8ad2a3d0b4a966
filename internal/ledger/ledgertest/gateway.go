// Package ledgertest provides a testify mock of ledger.Gateway.
package ledgertest

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"

	"shortener-core/internal/ledger"
)

type Gateway struct {
	mock.Mock
}

var _ ledger.Gateway = (*Gateway)(nil)

func (g *Gateway) ReadKey(ctx context.Context, from *common.Address, urlBody string) (string, error) {
	args := g.Called(ctx, from, urlBody)
	return args.String(0), args.Error(1)
}

func (g *Gateway) ReadURL(ctx context.Context, key string) (string, error) {
	args := g.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (g *Gateway) EstimateRegister(ctx context.Context, from common.Address, urlBody string) (uint64, error) {
	args := g.Called(ctx, from, urlBody)
	return args.Get(0).(uint64), args.Error(1)
}

func (g *Gateway) SubmitRegister(ctx context.Context, urlBody string, opts ledger.TxOpts) (common.Hash, error) {
	args := g.Called(ctx, urlBody, opts)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (g *Gateway) Receipt(ctx context.Context, txHash common.Hash) (*ledger.Receipt, error) {
	args := g.Called(ctx, txHash)
	r, _ := args.Get(0).(*ledger.Receipt)
	return r, args.Error(1)
}

func (g *Gateway) Accounts(ctx context.Context) ([]common.Address, error) {
	args := g.Called(ctx)
	accounts, _ := args.Get(0).([]common.Address)
	return accounts, args.Error(1)
}

func (g *Gateway) GasPrice(ctx context.Context) (*big.Int, error) {
	args := g.Called(ctx)
	price, _ := args.Get(0).(*big.Int)
	return price, args.Error(1)
}

func (g *Gateway) NetworkID(ctx context.Context) (string, error) {
	args := g.Called(ctx)
	return args.String(0), args.Error(1)
}

// Success returns a successful receipt for hash.
func Success(hash common.Hash, gasUsed uint64) *ledger.Receipt {
	return &ledger.Receipt{TxHash: hash, Status: 1, BlockNumber: 100, GasUsed: gasUsed}
}

// Reverted returns a reverted receipt for hash.
func Reverted(hash common.Hash) *ledger.Receipt {
	return &ledger.Receipt{TxHash: hash, Status: 0, BlockNumber: 100, GasUsed: 21000}
}
