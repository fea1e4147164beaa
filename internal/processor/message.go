package processor

import (
	"math/big"
	"time"

	"github.com/utrading/utrading-limit-relayer/internal/order"
)

// Message 消息接口
type Message interface {
	Type() string
}

// CandidateBatchMessage 一批可执行候选订单
// GasPrice 为空时由 gas oracle 补齐
type CandidateBatchMessage struct {
	Candidates []order.ExecutableOrder
	GasPrice   *big.Int
	ReceivedAt time.Time
}

func (m CandidateBatchMessage) Type() string { return "candidate_batch" }
