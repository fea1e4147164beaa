package nats

import (
	"bytes"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/utrading/utrading-limit-relayer/internal/order"
)

// Amount 线上传输的大整数，编码为十进制字符串
// 解码同时接受字符串、JSON 数字和 0x 十六进制
type Amount big.Int

func NewAmount(v *big.Int) *Amount {
	if v == nil {
		return nil
	}
	return (*Amount)(new(big.Int).Set(v))
}

// Int 返回副本，nil 保持 nil
func (a *Amount) Int() *big.Int {
	if a == nil {
		return nil
	}
	return new(big.Int).Set((*big.Int)(a))
}

func (a *Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + (*big.Int)(a).String() + `"`), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" {
		return fmt.Errorf("empty amount")
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return fmt.Errorf("invalid amount: %s", s)
	}
	*a = Amount(*v)
	return nil
}

// OrderPayload 签名限价单
type OrderPayload struct {
	Maker            common.Address `json:"maker"`
	TokenIn          common.Address `json:"tokenIn"`
	TokenOut         common.Address `json:"tokenOut"`
	TokenInDecimals  uint8          `json:"tokenInDecimals"`
	TokenOutDecimals uint8          `json:"tokenOutDecimals"`
	AmountIn         *Amount        `json:"amountIn"`
	AmountOut        *Amount        `json:"amountOut"`
	Recipient        common.Address `json:"recipient"`
	StartTime        *Amount        `json:"startTime"`
	EndTime          *Amount        `json:"endTime"`
	StopPrice        *Amount        `json:"stopPrice"`
	OracleAddress    common.Address `json:"oracleAddress"`
	OracleData       hexutil.Bytes  `json:"oracleData"`
	V                uint8          `json:"v"`
	R                common.Hash    `json:"r"`
	S                common.Hash    `json:"s"`
	ChainID          int64          `json:"chainId"`
}

func (p OrderPayload) LimitOrder() order.LimitOrder {
	return order.LimitOrder{
		Maker:            p.Maker,
		TokenIn:          p.TokenIn,
		TokenOut:         p.TokenOut,
		TokenInDecimals:  p.TokenInDecimals,
		TokenOutDecimals: p.TokenOutDecimals,
		AmountIn:         p.AmountIn.Int(),
		AmountOut:        p.AmountOut.Int(),
		Recipient:        p.Recipient,
		StartTime:        p.StartTime.Int(),
		EndTime:          p.EndTime.Int(),
		StopPrice:        p.StopPrice.Int(),
		OracleAddress:    p.OracleAddress,
		OracleData:       p.OracleData,
		V:                p.V,
		R:                p.R,
		S:                p.S,
		ChainID:          p.ChainID,
	}
}

func NewOrderPayload(o order.LimitOrder) OrderPayload {
	return OrderPayload{
		Maker:            o.Maker,
		TokenIn:          o.TokenIn,
		TokenOut:         o.TokenOut,
		TokenInDecimals:  o.TokenInDecimals,
		TokenOutDecimals: o.TokenOutDecimals,
		AmountIn:         NewAmount(o.AmountIn),
		AmountOut:        NewAmount(o.AmountOut),
		Recipient:        o.Recipient,
		StartTime:        NewAmount(o.StartTime),
		EndTime:          NewAmount(o.EndTime),
		StopPrice:        NewAmount(o.StopPrice),
		OracleAddress:    o.OracleAddress,
		OracleData:       o.OracleData,
		V:                o.V,
		R:                o.R,
		S:                o.S,
		ChainID:          o.ChainID,
	}
}

// StoredOrderPayload 带 digest 与价格的订单
type StoredOrderPayload struct {
	Digest      common.Hash    `json:"digest"`
	Price       *Amount        `json:"price"`
	Order       OrderPayload   `json:"order"`
	PairAddress common.Address `json:"pairAddress,omitempty"`
	Valid       bool           `json:"valid"`
}

func (p StoredOrderPayload) StoredOrder() order.StoredOrder {
	return order.StoredOrder{
		Digest:      p.Digest,
		Price:       p.Price.Int(),
		Order:       p.Order.LimitOrder(),
		PairAddress: p.PairAddress,
		Valid:       p.Valid,
	}
}

func NewStoredOrderPayload(o order.StoredOrder) StoredOrderPayload {
	return StoredOrderPayload{
		Digest:      o.Digest,
		Price:       NewAmount(o.Price),
		Order:       NewOrderPayload(o.Order),
		PairAddress: o.PairAddress,
		Valid:       o.Valid,
	}
}

// SaveReply submitted 的应答（仅 request/reply 时发送）
type SaveReply struct {
	Saved bool   `json:"saved"`
	Error string `json:"error,omitempty"`
}

// EligibleRequest 查询可执行订单
// Now 为 0 时使用当前时间
type EligibleRequest struct {
	PairAddress common.Address `json:"pairAddress"`
	TokenIn     common.Address `json:"tokenIn"`
	Now         int64          `json:"now,omitempty"`
}

type EligibleReply struct {
	Orders []StoredOrderPayload `json:"orders"`
	Error  string               `json:"error,omitempty"`
}

type InvalidateRequest struct {
	Digests []common.Hash `json:"digests"`
}

// CandidatePayload 上游盈利检查后的候选
type CandidatePayload struct {
	LimitOrderData StoredOrderPayload `json:"limitOrderData"`
	InAmount       *Amount            `json:"inAmount"`
	MinAmountIn    *Amount            `json:"minAmountIn"`
	OutAmount      *Amount            `json:"outAmount"`
	OutDiff        *Amount            `json:"outDiff"`
}

// CandidatesRequest gasPrice 可省略
type CandidatesRequest struct {
	Candidates []CandidatePayload `json:"candidates"`
	GasPrice   *Amount            `json:"gasPrice,omitempty"`
}

// ExecutableOrders 转换为领域类型，任一金额缺失的候选被丢弃
func (r CandidatesRequest) ExecutableOrders() ([]order.ExecutableOrder, int) {
	out := make([]order.ExecutableOrder, 0, len(r.Candidates))
	dropped := 0
	for _, c := range r.Candidates {
		if c.InAmount == nil || c.MinAmountIn == nil || c.OutAmount == nil || c.OutDiff == nil {
			dropped++
			continue
		}
		out = append(out, order.ExecutableOrder{
			LimitOrderData: c.LimitOrderData.StoredOrder(),
			InAmount:       c.InAmount.Int(),
			MinAmountIn:    c.MinAmountIn.Int(),
			OutAmount:      c.OutAmount.Int(),
			OutDiff:        c.OutDiff.Int(),
		})
	}
	return out, dropped
}

// ExecutedOrderEvent 执行回执事件
type ExecutedOrderEvent struct {
	ChainID     int64        `json:"chainId"`
	Digest      common.Hash  `json:"digest"`
	TxHash      common.Hash  `json:"txHash"`
	FillAmount  *Amount      `json:"fillAmount"`
	Status      int8         `json:"status"`
	StatusText  string       `json:"statusText"`
	SubmittedAt int64        `json:"submittedAt"`
	Order       OrderPayload `json:"order"`
}

func NewExecutedOrderEvent(chainID int64, r order.ExecutedOrder) ExecutedOrderEvent {
	submitted := r.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now()
	}
	return ExecutedOrderEvent{
		ChainID:     chainID,
		Digest:      r.Digest,
		TxHash:      r.TxHash,
		FillAmount:  NewAmount(r.FillAmount),
		Status:      int8(r.Status),
		StatusText:  r.Status.String(),
		SubmittedAt: submitted.Unix(),
		Order:       NewOrderPayload(r.Order),
	}
}
