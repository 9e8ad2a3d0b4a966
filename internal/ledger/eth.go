package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"shortener-core/pkg/errno"
)

// chainClient is the subset of *ethclient.Client the gateway uses.
type chainClient interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	NetworkID(ctx context.Context) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// rpcCaller covers node-managed account calls (eth_accounts, eth_sendTransaction).
type rpcCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// LocalSigner 使用本地加密 key 文件签名
type LocalSigner struct {
	Address common.Address
	key     *ecdsa.PrivateKey
}

func NewLocalSigner(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{
		Address: crypto.PubkeyToAddress(key.PublicKey),
		key:     key,
	}
}

// LoadKeystore 解密一个 go-ethereum keystore V3 文件
func LoadKeystore(path, password string) (*LocalSigner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取 keystore 失败: %w", err)
	}
	key, err := keystore.DecryptKey(data, password)
	if err != nil {
		return nil, fmt.Errorf("解密 keystore 失败 (密码错误?): %w", err)
	}
	return &LocalSigner{Address: key.Address, key: key.PrivateKey}, nil
}

// EthGateway 基于 go-ethereum 的 Gateway 实现
type EthGateway struct {
	client   chainClient
	rpc      rpcCaller
	abi      abi.ABI
	contract common.Address
	signer   *LocalSigner // nil 表示由节点托管账户签名
	closer   func()
}

// NewEthGateway wires a gateway over existing clients. signer may be nil.
func NewEthGateway(client chainClient, rpcc rpcCaller, contractABI abi.ABI, contract common.Address, signer *LocalSigner) *EthGateway {
	return &EthGateway{
		client:   client,
		rpc:      rpcc,
		abi:      contractABI,
		contract: contract,
		signer:   signer,
	}
}

// Dial 连接节点, 按当前网络 ID 从 artifact 中解析合约地址
// 网络未部署合约时返回 ErrUnsupportedNetwork
func Dial(ctx context.Context, rpcURL string, artifact *Artifact, signer *LocalSigner) (*EthGateway, error) {
	rc, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errno.Wrap(errno.ErrGatewayUnavailable, err)
	}
	client := ethclient.NewClient(rc)

	netID, err := client.NetworkID(ctx)
	if err != nil {
		rc.Close()
		return nil, errno.Wrap(errno.ErrGatewayUnavailable, err)
	}

	contract, err := artifact.AddressFor(netID.String())
	if err != nil {
		rc.Close()
		return nil, err
	}

	gw := NewEthGateway(client, rc, artifact.ABI, contract, signer)
	gw.closer = rc.Close
	return gw, nil
}

// Contract returns the resolved contract address.
func (g *EthGateway) Contract() common.Address {
	return g.contract
}

func (g *EthGateway) Close() {
	if g.closer != nil {
		g.closer()
	}
}

func (g *EthGateway) ReadKey(ctx context.Context, from *common.Address, urlBody string) (string, error) {
	msg := ethereum.CallMsg{To: &g.contract}
	if from != nil {
		msg.From = *from
	}
	return g.callString(ctx, msg, "getKey", urlBody)
}

func (g *EthGateway) ReadURL(ctx context.Context, key string) (string, error) {
	return g.callString(ctx, ethereum.CallMsg{To: &g.contract}, "getText", key)
}

func (g *EthGateway) EstimateRegister(ctx context.Context, from common.Address, urlBody string) (uint64, error) {
	data, err := g.abi.Pack("register", urlBody)
	if err != nil {
		return 0, err
	}
	return g.client.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &g.contract,
		Data: data,
	})
}

func (g *EthGateway) SubmitRegister(ctx context.Context, urlBody string, opts TxOpts) (common.Hash, error) {
	data, err := g.abi.Pack("register", urlBody)
	if err != nil {
		return common.Hash{}, err
	}

	if g.signer != nil && g.signer.Address == opts.From {
		return g.sendSigned(ctx, data, opts)
	}

	// 节点托管账户: 由节点 (或钱包) 完成签名
	args := map[string]interface{}{
		"from":     opts.From,
		"to":       g.contract,
		"gas":      hexutil.Uint64(opts.Gas),
		"gasPrice": (*hexutil.Big)(opts.GasPrice),
		"data":     hexutil.Bytes(data),
	}
	var hash common.Hash
	if err := g.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

func (g *EthGateway) sendSigned(ctx context.Context, data []byte, opts TxOpts) (common.Hash, error) {
	nonce, err := g.client.PendingNonceAt(ctx, opts.From)
	if err != nil {
		return common.Hash{}, err
	}
	chainID, err := g.client.ChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: opts.GasPrice,
		Gas:      opts.Gas,
		To:       &g.contract,
		Value:    new(big.Int),
		Data:     data,
	})
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), g.signer.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("签名失败: %w", err)
	}
	if err := g.client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, err
	}
	return signedTx.Hash(), nil
}

func (g *EthGateway) Receipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	r, err := g.client.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return receiptFrom(r), nil
}

func (g *EthGateway) Accounts(ctx context.Context) ([]common.Address, error) {
	if g.signer != nil {
		return []common.Address{g.signer.Address}, nil
	}
	var accounts []common.Address
	if err := g.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (g *EthGateway) GasPrice(ctx context.Context) (*big.Int, error) {
	return g.client.SuggestGasPrice(ctx)
}

func (g *EthGateway) NetworkID(ctx context.Context) (string, error) {
	id, err := g.client.NetworkID(ctx)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (g *EthGateway) callString(ctx context.Context, msg ethereum.CallMsg, method string, arg string) (string, error) {
	data, err := g.abi.Pack(method, arg)
	if err != nil {
		return "", err
	}
	msg.Data = data

	out, err := g.client.CallContract(ctx, msg, nil)
	if err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", nil
	}

	values, err := g.abi.Unpack(method, out)
	if err != nil {
		return "", fmt.Errorf("解析 %s 返回值失败: %w", method, err)
	}
	if len(values) == 0 {
		return "", nil
	}
	switch v := values[0].(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case [32]byte:
		return strings.TrimRight(string(v[:]), "\x00"), nil
	default:
		return "", fmt.Errorf("%s 返回了不支持的类型 %T", method, v)
	}
}
