package processor

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/utrading/utrading-limit-relayer/internal/order"
	"github.com/utrading/utrading-limit-relayer/pkg/logger"
)

// BatchExecutor 执行一批候选订单
type BatchExecutor interface {
	ExecuteOrders(ctx context.Context, candidates []order.ExecutableOrder, gasPrice *big.Int) ([]order.ExecutedOrder, error)
}

// GasPricer 批次共用的 gas price
type GasPricer interface {
	GasPrice(ctx context.Context) (*big.Int, error)
}

// ReceiptSink 接收执行回执
type ReceiptSink interface {
	AddAll(receipts []order.ExecutedOrder) error
}

// ExecutionHandler 处理候选批次消息：执行后把回执交给写入器
type ExecutionHandler struct {
	executor BatchExecutor
	gas      GasPricer
	receipts ReceiptSink
	timeout  time.Duration
}

// NewExecutionHandler gas 可为 nil，此时由 filler 逐单获取 gas price
func NewExecutionHandler(executor BatchExecutor, gas GasPricer, receipts ReceiptSink, timeout time.Duration) *ExecutionHandler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ExecutionHandler{
		executor: executor,
		gas:      gas,
		receipts: receipts,
		timeout:  timeout,
	}
}

func (h *ExecutionHandler) HandleMessage(msg Message) error {
	switch m := msg.(type) {
	case CandidateBatchMessage:
		return h.handleBatch(m)
	case *CandidateBatchMessage:
		return h.handleBatch(*m)
	default:
		return fmt.Errorf("unsupported message type: %s", msg.Type())
	}
}

func (h *ExecutionHandler) handleBatch(m CandidateBatchMessage) error {
	if len(m.Candidates) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	gasPrice := m.GasPrice
	if gasPrice == nil && h.gas != nil {
		price, err := h.gas.GasPrice(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("gas oracle unavailable, deferring to filler")
		} else {
			gasPrice = price
		}
	}

	executed, err := h.executor.ExecuteOrders(ctx, m.Candidates, gasPrice)
	if err != nil {
		return fmt.Errorf("execute orders: %w", err)
	}

	logger.Info().
		Int("candidates", len(m.Candidates)).
		Int("submitted", len(executed)).
		Dur("queued", time.Since(m.ReceivedAt)).
		Msg("candidate batch executed")

	if len(executed) == 0 {
		return nil
	}
	if err := h.receipts.AddAll(executed); err != nil {
		return fmt.Errorf("queue receipts: %w", err)
	}
	return nil
}
