package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"shortener-core/pkg/errno"
)

// RegistryABI is used when an artifact carries no ABI of its own.
const RegistryABI = `[
  {"type":"function","name":"register","stateMutability":"nonpayable",
   "inputs":[{"name":"text","type":"string"}],"outputs":[]},
  {"type":"function","name":"getKey","stateMutability":"view",
   "inputs":[{"name":"text","type":"string"}],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"getText","stateMutability":"view",
   "inputs":[{"name":"key","type":"string"}],"outputs":[{"name":"","type":"string"}]}
]`

// Deployment 合约在某个网络上的部署信息
type Deployment struct {
	Address string `json:"address"`
}

// Artifact 启动描述文件 (Truffle 风格 artifact.json)
type Artifact struct {
	ContractName string                `json:"contractName"`
	RawABI       json.RawMessage       `json:"abi"`
	Networks     map[string]Deployment `json:"networks"`

	ABI abi.ABI `json:"-"`
}

// LoadArtifact 读取并解析 artifact 文件
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取 artifact 失败: %w", err)
	}
	return ParseArtifact(data)
}

func ParseArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("解析 artifact 失败: %w", err)
	}

	raw := []byte(a.RawABI)
	if len(bytes.TrimSpace(raw)) == 0 || string(raw) == "null" {
		raw = []byte(RegistryABI)
	}
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("解析 ABI 失败: %w", err)
	}
	for _, name := range []string{"register", "getKey", "getText"} {
		if _, ok := parsed.Methods[name]; !ok {
			return nil, fmt.Errorf("ABI 缺少方法 %s", name)
		}
	}
	a.ABI = parsed
	return &a, nil
}

// AddressFor 按网络 ID 查找合约地址, 未部署返回 ErrUnsupportedNetwork
func (a *Artifact) AddressFor(networkID string) (common.Address, error) {
	d, ok := a.Networks[networkID]
	if !ok || !common.IsHexAddress(d.Address) {
		return common.Address{}, errno.Wrapf(errno.ErrUnsupportedNetwork, "network %s", networkID)
	}
	return common.HexToAddress(d.Address), nil
}
