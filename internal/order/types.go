package order

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Status 执行回执状态
type Status int8

const (
	StatusUnknown Status = -1 // 已广播，尚未确认
	StatusFailed  Status = 0
	StatusPassed  Status = 1
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusFailed:
		return "failed"
	case StatusPassed:
		return "passed"
	default:
		return "invalid"
	}
}

// LimitOrder maker 签名的限价单（不可变）
type LimitOrder struct {
	Maker            common.Address
	TokenIn          common.Address
	TokenOut         common.Address
	TokenInDecimals  uint8
	TokenOutDecimals uint8
	AmountIn         *big.Int
	AmountOut        *big.Int
	Recipient        common.Address
	StartTime        *big.Int // 秒
	EndTime          *big.Int // 秒
	StopPrice        *big.Int
	OracleAddress    common.Address
	OracleData       []byte
	V                uint8
	R                common.Hash
	S                common.Hash
	ChainID          int64
}

// StoredOrder 持久化的限价单
// Valid 只允许 true -> false 单向变化
type StoredOrder struct {
	Digest      common.Hash
	Price       *big.Int
	Order       LimitOrder
	PairAddress common.Address
	Valid       bool
}

// ExecutableOrder 上游盈利检查后的可执行候选
type ExecutableOrder struct {
	LimitOrderData StoredOrder
	InAmount       *big.Int
	MinAmountIn    *big.Int
	OutAmount      *big.Int
	OutDiff        *big.Int
}

// ExecutedOrder 执行回执（提交时的初始结果）
type ExecutedOrder struct {
	Order       LimitOrder
	Digest      common.Hash
	FillAmount  *big.Int
	TxHash      common.Hash
	Status      Status
	SubmittedAt time.Time
}
