package order

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SushiSwap 主网 factory 与 pair init code hash
var (
	DefaultPairFactory      = common.HexToAddress("0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac")
	DefaultPairInitCodeHash = common.HexToHash("0xe18a34eb0e04b04f7a0ac29a6e80748dca96319b42c520b45dd2c7e2e6a3f9c4")
)

// PairAddresser 计算交易对地址（CREATE2，与 token 顺序无关）
type PairAddresser struct {
	Factory      common.Address
	InitCodeHash common.Hash
}

func NewPairAddresser(factory common.Address, initCodeHash common.Hash) PairAddresser {
	if factory == (common.Address{}) {
		factory = DefaultPairFactory
	}
	if initCodeHash == (common.Hash{}) {
		initCodeHash = DefaultPairInitCodeHash
	}
	return PairAddresser{Factory: factory, InitCodeHash: initCodeHash}
}

// SortTokens 返回 token0 < token1
func SortTokens(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) < 0 {
		return a, b
	}
	return b, a
}

// PairAddress 计算 (tokenA, tokenB) 的 pair 地址
func (p PairAddresser) PairAddress(tokenA, tokenB common.Address) common.Address {
	token0, token1 := SortTokens(tokenA, tokenB)
	salt := crypto.Keccak256Hash(token0.Bytes(), token1.Bytes())
	return crypto.CreateAddress2(p.Factory, salt, p.InitCodeHash.Bytes())
}
