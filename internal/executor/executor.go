package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/panjf2000/ants/v2"
	"github.com/shopspring/decimal"

	"github.com/utrading/utrading-limit-relayer/internal/cache"
	"github.com/utrading/utrading-limit-relayer/internal/monitor"
	"github.com/utrading/utrading-limit-relayer/internal/order"
	"github.com/utrading/utrading-limit-relayer/pkg/goplus"
	"github.com/utrading/utrading-limit-relayer/pkg/logger"
)

// 执行结果（指标标签）
const (
	resultSubmitted        = "submitted"
	resultSkipped          = "skipped"
	resultEstimationFailed = "estimation_failed"
	resultTransportFailed  = "transport_failed"
	resultInvalid          = "invalid"
	resultPanicked         = "panicked"
)

var (
	errNotExecuted = errors.New("fill not executed")
	gweiDivisor    = decimal.New(1, 9)
)

// Filler 交易签名与广播边界
type Filler interface {
	Fill(ctx context.Context, req order.FillRequest) (order.FillResult, error)
}

// ProfitResolver 利润方向
type ProfitResolver interface {
	KeepTokenIn(tokenIn, tokenOut common.Address) bool
}

type Config struct {
	ChainID           int64
	ReceiverAddresses map[int64]common.Address
	ProfitReceiver    common.Address
	PoolSize          int
	FillTimeout       time.Duration
}

// Executor 批量执行候选订单，每个 digest 在去重窗口内至多提交一次
type Executor struct {
	cfg      Config
	filler   Filler
	resolver ProfitResolver
	dedup    cache.DedupGuard
	pool     *ants.Pool

	running   atomic.Int64
	submitted atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
}

func New(cfg Config, filler Filler, resolver ProfitResolver, dedup cache.DedupGuard) (*Executor, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 32
	}
	if cfg.FillTimeout <= 0 {
		cfg.FillTimeout = time.Minute
	}

	pool, err := ants.NewPool(cfg.PoolSize)
	if err != nil {
		return nil, err
	}

	return &Executor{
		cfg:      cfg,
		filler:   filler,
		resolver: resolver,
		dedup:    dedup,
		pool:     pool,
	}, nil
}

// ExternalAmount 预留 10% 利润作为滑点
// keepTokenIn: minAmountIn + (inAmount - minAmountIn) / 10
// 否则:        outAmount - outDiff / 10
func ExternalAmount(c order.ExecutableOrder, keepTokenIn bool) *big.Int {
	if keepTokenIn {
		inDiff := new(big.Int).Sub(c.InAmount, c.MinAmountIn)
		inDiff.Quo(inDiff, big.NewInt(10))
		return inDiff.Add(inDiff, c.MinAmountIn)
	}
	outBuffer := new(big.Int).Quo(c.OutDiff, big.NewInt(10))
	return outBuffer.Sub(c.OutAmount, outBuffer)
}

func hasAmounts(c order.ExecutableOrder) bool {
	return c.InAmount != nil && c.MinAmountIn != nil && c.OutAmount != nil && c.OutDiff != nil
}

// receiver 当前链的 settlement receiver，同时要求 profit receiver 已配置
func (e *Executor) receiver() (common.Address, error) {
	if e.cfg.ChainID == 0 {
		return common.Address{}, order.Configurationf("chain id is not set")
	}
	addr, ok := e.cfg.ReceiverAddresses[e.cfg.ChainID]
	if !ok || addr == (common.Address{}) {
		return common.Address{}, order.Configurationf("no receiver address for chain id %d", e.cfg.ChainID)
	}
	if e.cfg.ProfitReceiver == (common.Address{}) {
		return common.Address{}, order.Configurationf("profit receiver is not set")
	}
	return addr, nil
}

// ExecuteOrders 并发执行一批候选订单
// 返回本轮成功提交的回执（顺序不保证）；单个订单失败不影响其他订单
func (e *Executor) ExecuteOrders(ctx context.Context, candidates []order.ExecutableOrder, gasPrice *big.Int) ([]order.ExecutedOrder, error) {
	receiver, err := e.receiver()
	if err != nil {
		return nil, err
	}

	monitor.ObserveExecutionBatch(len(candidates))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		executed = make([]order.ExecutedOrder, 0, len(candidates))
	)

	for _, c := range candidates {
		candidate := c
		task := func() {
			defer wg.Done()
			defer goplus.Recover()

			receipt, ok := e.executeOne(ctx, candidate, gasPrice, receiver)
			if !ok {
				return
			}
			mu.Lock()
			executed = append(executed, receipt)
			mu.Unlock()
		}

		wg.Add(1)
		if err := e.pool.Submit(task); err != nil {
			// 协程池已满或已关闭，降级为同步执行
			logger.Warn().Err(err).Msg("executor pool unavailable, executing synchronously")
			task()
		}
	}
	wg.Wait()

	monitor.SetDedupEntries(e.dedupLen())

	return executed, nil
}

func (e *Executor) executeOne(ctx context.Context, c order.ExecutableOrder, gasPrice *big.Int, receiver common.Address) (order.ExecutedOrder, bool) {
	stored := c.LimitOrderData
	digest := stored.Digest

	// 金额不完整的候选不登记去重，直接丢弃
	if !hasAmounts(c) {
		e.failed.Add(1)
		monitor.IncExecution(resultInvalid)
		logger.Warn().Str("digest", digest.Hex()).Msg("candidate amounts incomplete, dropped")
		return order.ExecutedOrder{}, false
	}

	if e.dedup.AlreadyExecuting(digest) {
		e.skipped.Add(1)
		monitor.IncExecution(resultSkipped)
		logger.Debug().Str("digest", digest.Hex()).Msg("order already executing")
		return order.ExecutedOrder{}, false
	}

	e.running.Add(1)
	defer e.running.Add(-1)

	// 已登记后发生 panic 时清除登记，避免整个窗口内无法重试
	defer goplus.RecoverWith(func(any) {
		e.dedup.Remove(digest)
		e.failed.Add(1)
		monitor.IncExecution(resultPanicked)
	})

	keepTokenIn := e.resolver.KeepTokenIn(stored.Order.TokenIn, stored.Order.TokenOut)
	amountExternal := ExternalAmount(c, keepTokenIn)

	req := order.FillRequest{
		Order:          stored,
		Path:           []common.Address{stored.Order.TokenIn, stored.Order.TokenOut},
		AmountExternal: amountExternal,
		AmountIn:       c.InAmount,
		Receiver:       receiver,
		ProfitReceiver: e.cfg.ProfitReceiver,
		KeepTokenIn:    keepTokenIn,
		Options:        order.FillOptions{GasPrice: gasPrice},
	}

	fillCtx, cancel := context.WithTimeout(ctx, e.cfg.FillTimeout)
	defer cancel()

	start := time.Now()
	result, err := e.fill(fillCtx, req)
	monitor.ObserveFillDuration(time.Since(start).Seconds())

	if err == nil && !result.Executed {
		err = errNotExecuted
	}
	if err != nil {
		// 清除登记，下一轮可重新提交
		e.dedup.Remove(digest)
		e.failed.Add(1)

		reason := resultTransportFailed
		if errors.Is(err, errNotExecuted) || errors.Is(err, order.ErrEstimation) {
			reason = resultEstimationFailed
		}
		monitor.IncExecution(reason)
		logger.Warn().Err(err).
			Str("digest", digest.Hex()).
			Str("reason", reason).
			Msg("fill order failed")
		return order.ExecutedOrder{}, false
	}

	e.submitted.Add(1)
	monitor.IncExecution(resultSubmitted)
	logger.Info().
		Str("digest", digest.Hex()).
		Str("tx_hash", result.Transaction.Hash.Hex()).
		Uint64("nonce", result.Transaction.Nonce).
		Str("gas_price_gwei", formatGwei(gasPrice)).
		Str("amount_external", amountExternal.String()).
		Bool("keep_token_in", keepTokenIn).
		Msg("order submitted")

	return order.ExecutedOrder{
		Order:       stored.Order,
		Digest:      digest,
		FillAmount:  new(big.Int).Set(c.InAmount),
		TxHash:      result.Transaction.Hash,
		Status:      order.StatusUnknown,
		SubmittedAt: time.Now(),
	}, true
}

// fill 调用交易边界，panic 视为传输错误
func (e *Executor) fill(ctx context.Context, req order.FillRequest) (result order.FillResult, err error) {
	defer goplus.RecoverWith(func(r any) {
		err = fmt.Errorf("%w: fill panicked: %v", order.ErrTransport, r)
	})
	return e.filler.Fill(ctx, req)
}

func (e *Executor) dedupLen() int {
	if l, ok := e.dedup.(interface{ Len() int }); ok {
		return l.Len()
	}
	return 0
}

func formatGwei(wei *big.Int) string {
	if wei == nil {
		return "auto"
	}
	return decimal.NewFromBigInt(wei, 0).Div(gweiDivisor).StringFixed(2)
}

// Stats 获取统计信息
func (e *Executor) Stats() map[string]any {
	stats := map[string]any{
		"chain_id":  e.cfg.ChainID,
		"running":   e.running.Load(),
		"submitted": e.submitted.Load(),
		"skipped":   e.skipped.Load(),
		"failed":    e.failed.Load(),
		"pool_cap":  e.pool.Cap(),
	}
	for k, v := range e.dedup.Stats() {
		stats["dedup_"+k] = v
	}
	return stats
}

// Close 释放协程池，等待进行中的任务完成
func (e *Executor) Close() {
	if err := e.pool.ReleaseTimeout(30 * time.Second); err != nil {
		logger.Warn().Err(err).Msg("executor pool release timeout")
	}
}
