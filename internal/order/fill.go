package order

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FillOptions 提交选项
type FillOptions struct {
	Debug          bool
	ForceExecution bool // 预估失败也按配置的 gas limit 发送
	Open           bool // fillOrderOpen：任何人可成交
	GasPrice       *big.Int
}

// FillRequest 一次成交请求
type FillRequest struct {
	Order          StoredOrder
	Path           []common.Address // [tokenIn, tokenOut]
	AmountExternal *big.Int
	AmountIn       *big.Int
	Receiver       common.Address // settlement receiver
	ProfitReceiver common.Address
	KeepTokenIn    bool
	Options        FillOptions
}

// Transaction 已广播交易
type Transaction struct {
	Hash  common.Hash
	Nonce uint64
}

// FillResult Executed=false 表示预估失败，未发送交易
type FillResult struct {
	Executed    bool
	Transaction Transaction
}
