package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrading/utrading-limit-relayer/internal/cache"
	"github.com/utrading/utrading-limit-relayer/internal/order"
)

var (
	tokenA         = common.HexToAddress("0x0a")
	tokenB         = common.HexToAddress("0x0b")
	receiverAddr   = common.HexToAddress("0x802290173908ed30A9642D6872e252Ef4f6e59A2")
	profitReceiver = common.HexToAddress("0x0c")
)

type fakeFiller struct {
	mu       sync.Mutex
	calls    map[common.Hash]int
	requests []order.FillRequest
	outcome  func(req order.FillRequest) (order.FillResult, error)
}

func newFakeFiller(outcome func(req order.FillRequest) (order.FillResult, error)) *fakeFiller {
	return &fakeFiller{calls: make(map[common.Hash]int), outcome: outcome}
}

func (f *fakeFiller) Fill(_ context.Context, req order.FillRequest) (order.FillResult, error) {
	f.mu.Lock()
	f.calls[req.Order.Digest]++
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.outcome != nil {
		return f.outcome(req)
	}
	return executedResult(req.Order.Digest), nil
}

func (f *fakeFiller) callCount(d common.Hash) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[d]
}

func executedResult(d common.Hash) order.FillResult {
	return order.FillResult{
		Executed:    true,
		Transaction: order.Transaction{Hash: common.BytesToHash(append([]byte{0xf0}, d.Bytes()[31])), Nonce: 7},
	}
}

type fixedResolver bool

func (r fixedResolver) KeepTokenIn(_, _ common.Address) bool { return bool(r) }

func candidate(seed byte) order.ExecutableOrder {
	return order.ExecutableOrder{
		LimitOrderData: order.StoredOrder{
			Digest: common.BytesToHash([]byte{seed}),
			Order: order.LimitOrder{
				TokenIn:  tokenA,
				TokenOut: tokenB,
				AmountIn: big.NewInt(1000),
				ChainID:  137,
			},
			Valid: true,
		},
		InAmount:    big.NewInt(1000),
		MinAmountIn: big.NewInt(900),
		OutAmount:   big.NewInt(2000),
		OutDiff:     big.NewInt(300),
	}
}

func newTestExecutor(t *testing.T, filler Filler, keepTokenIn bool) (*Executor, *cache.ExecutionDedup) {
	t.Helper()
	dedup := cache.NewExecutionDedup(time.Minute)
	e, err := New(Config{
		ChainID:           137,
		ReceiverAddresses: map[int64]common.Address{137: receiverAddr},
		ProfitReceiver:    profitReceiver,
		PoolSize:          4,
	}, filler, fixedResolver(keepTokenIn), dedup)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e, dedup
}

func TestExternalAmount(t *testing.T) {
	c := candidate(1)
	assert.Equal(t, "910", ExternalAmount(c, true).String())
	assert.Equal(t, "1970", ExternalAmount(c, false).String())

	// 输入不被修改
	assert.Equal(t, "1000", c.InAmount.String())
	assert.Equal(t, "2000", c.OutAmount.String())
}

func TestExternalAmount_TruncatesTowardZero(t *testing.T) {
	c := candidate(1)
	c.InAmount = big.NewInt(1009)
	assert.Equal(t, "910", ExternalAmount(c, true).String())

	// 负差值同样向零截断：-105/10 = -10
	c.InAmount = big.NewInt(895)
	c.MinAmountIn = big.NewInt(1000)
	assert.Equal(t, "990", ExternalAmount(c, true).String())

	c.OutDiff = big.NewInt(-25)
	assert.Equal(t, "2002", ExternalAmount(c, false).String())
}

func TestExecuteOrders_FillRequest(t *testing.T) {
	filler := newFakeFiller(nil)
	e, _ := newTestExecutor(t, filler, true)

	gasPrice := big.NewInt(30_000_000_000)
	executed, err := e.ExecuteOrders(context.Background(), []order.ExecutableOrder{candidate(1)}, gasPrice)
	require.NoError(t, err)
	require.Len(t, executed, 1)

	require.Len(t, filler.requests, 1)
	req := filler.requests[0]
	assert.Equal(t, []common.Address{tokenA, tokenB}, req.Path)
	assert.Equal(t, "910", req.AmountExternal.String())
	assert.Equal(t, "1000", req.AmountIn.String())
	assert.Equal(t, receiverAddr, req.Receiver)
	assert.Equal(t, profitReceiver, req.ProfitReceiver)
	assert.True(t, req.KeepTokenIn)
	assert.Equal(t, gasPrice, req.Options.GasPrice)
	assert.False(t, req.Options.Debug)
	assert.False(t, req.Options.ForceExecution)
	assert.False(t, req.Options.Open)

	r := executed[0]
	assert.Equal(t, order.StatusUnknown, r.Status)
	assert.Equal(t, candidate(1).LimitOrderData.Digest, r.Digest)
	assert.Equal(t, "1000", r.FillAmount.String())
	assert.Equal(t, executedResult(r.Digest).Transaction.Hash, r.TxHash)
	assert.False(t, r.SubmittedAt.IsZero())
}

func TestExecuteOrders_BatchIsolation(t *testing.T) {
	second := candidate(2).LimitOrderData.Digest
	filler := newFakeFiller(func(req order.FillRequest) (order.FillResult, error) {
		if req.Order.Digest == second {
			return order.FillResult{Executed: false}, nil
		}
		return executedResult(req.Order.Digest), nil
	})
	e, dedup := newTestExecutor(t, filler, false)

	batch := []order.ExecutableOrder{candidate(1), candidate(2), candidate(3)}
	executed, err := e.ExecuteOrders(context.Background(), batch, big.NewInt(1))
	require.NoError(t, err)

	digests := make([]common.Hash, 0, len(executed))
	for _, r := range executed {
		digests = append(digests, r.Digest)
	}
	assert.ElementsMatch(t, []common.Hash{candidate(1).LimitOrderData.Digest, candidate(3).LimitOrderData.Digest}, digests)

	// 失败订单的登记已清除，成功订单仍在窗口内
	assert.False(t, dedup.AlreadyExecuting(second))
	assert.True(t, dedup.AlreadyExecuting(candidate(1).LimitOrderData.Digest))
	assert.True(t, dedup.AlreadyExecuting(candidate(3).LimitOrderData.Digest))
}

func TestExecuteOrders_TransportErrorClearsDedup(t *testing.T) {
	filler := newFakeFiller(func(req order.FillRequest) (order.FillResult, error) {
		return order.FillResult{}, fmt.Errorf("%w: nonce too low", order.ErrTransport)
	})
	e, _ := newTestExecutor(t, filler, true)
	c := candidate(1)

	executed, err := e.ExecuteOrders(context.Background(), []order.ExecutableOrder{c}, big.NewInt(1))
	require.NoError(t, err)
	assert.Empty(t, executed)

	// 下一轮重新提交
	_, err = e.ExecuteOrders(context.Background(), []order.ExecutableOrder{c}, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, 2, filler.callCount(c.LimitOrderData.Digest))
	assert.Equal(t, int64(2), e.Stats()["failed"])
}

func TestExecuteOrders_SkipsWithinWindow(t *testing.T) {
	filler := newFakeFiller(nil)
	e, _ := newTestExecutor(t, filler, true)
	c := candidate(1)

	executed, err := e.ExecuteOrders(context.Background(), []order.ExecutableOrder{c}, big.NewInt(1))
	require.NoError(t, err)
	assert.Len(t, executed, 1)

	executed, err = e.ExecuteOrders(context.Background(), []order.ExecutableOrder{c}, big.NewInt(1))
	require.NoError(t, err)
	assert.Empty(t, executed)
	assert.Equal(t, 1, filler.callCount(c.LimitOrderData.Digest))
	assert.Equal(t, int64(1), e.Stats()["skipped"])
}

func TestExecuteOrders_OverlappingBatches(t *testing.T) {
	release := make(chan struct{})
	filler := newFakeFiller(func(req order.FillRequest) (order.FillResult, error) {
		<-release
		return executedResult(req.Order.Digest), nil
	})
	e, _ := newTestExecutor(t, filler, true)
	c := candidate(1)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			executed, err := e.ExecuteOrders(context.Background(), []order.ExecutableOrder{c}, big.NewInt(1))
			assert.NoError(t, err)
			mu.Lock()
			total += len(executed)
			mu.Unlock()
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, total)
	assert.Equal(t, 1, filler.callCount(c.LimitOrderData.Digest))
}

func TestExecuteOrders_ConfigurationErrors(t *testing.T) {
	filler := newFakeFiller(nil)
	dedup := cache.NewExecutionDedup(time.Minute)

	noChain, err := New(Config{ReceiverAddresses: map[int64]common.Address{137: receiverAddr}}, filler, fixedResolver(true), dedup)
	require.NoError(t, err)
	defer noChain.Close()
	_, err = noChain.ExecuteOrders(context.Background(), []order.ExecutableOrder{candidate(1)}, big.NewInt(1))
	assert.ErrorIs(t, err, order.ErrConfiguration)

	noReceiver, err := New(Config{ChainID: 5, ReceiverAddresses: map[int64]common.Address{137: receiverAddr}}, filler, fixedResolver(true), dedup)
	require.NoError(t, err)
	defer noReceiver.Close()
	_, err = noReceiver.ExecuteOrders(context.Background(), []order.ExecutableOrder{candidate(1)}, big.NewInt(1))
	assert.ErrorIs(t, err, order.ErrConfiguration)

	noProfit, err := New(Config{ChainID: 137, ReceiverAddresses: map[int64]common.Address{137: receiverAddr}}, filler, fixedResolver(true), dedup)
	require.NoError(t, err)
	defer noProfit.Close()
	_, err = noProfit.ExecuteOrders(context.Background(), []order.ExecutableOrder{candidate(1)}, big.NewInt(1))
	assert.ErrorIs(t, err, order.ErrConfiguration)
	assert.Contains(t, err.Error(), "profit receiver")

	// 未发生任何提交，也未登记去重
	assert.Empty(t, filler.requests)
	assert.False(t, dedup.AlreadyExecuting(candidate(1).LimitOrderData.Digest))
}

func TestExecuteOrders_PanicContained(t *testing.T) {
	boom := candidate(2).LimitOrderData.Digest
	filler := newFakeFiller(func(req order.FillRequest) (order.FillResult, error) {
		if req.Order.Digest == boom {
			panic(errors.New("boom"))
		}
		return executedResult(req.Order.Digest), nil
	})
	e, dedup := newTestExecutor(t, filler, true)

	executed, err := e.ExecuteOrders(context.Background(), []order.ExecutableOrder{candidate(1), candidate(2)}, big.NewInt(1))
	require.NoError(t, err)
	require.Len(t, executed, 1)
	assert.Equal(t, candidate(1).LimitOrderData.Digest, executed[0].Digest)

	// panic 按传输错误处理，登记被清除
	assert.False(t, dedup.AlreadyExecuting(boom))
}

func TestExecuteOrders_EmptyBatch(t *testing.T) {
	e, _ := newTestExecutor(t, newFakeFiller(nil), true)
	executed, err := e.ExecuteOrders(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, executed)
}

func TestFormatGwei(t *testing.T) {
	assert.Equal(t, "30.50", formatGwei(big.NewInt(30_500_000_000)))
	assert.Equal(t, "auto", formatGwei(nil))
}

func TestExecuteOrders_IncompleteAmountsNotRegistered(t *testing.T) {
	filler := newFakeFiller(nil)
	e, dedup := newTestExecutor(t, filler, true)

	broken := candidate(9)
	broken.MinAmountIn = nil
	noDiff := candidate(8)
	noDiff.OutDiff = nil

	executed, err := e.ExecuteOrders(context.Background(), []order.ExecutableOrder{broken, noDiff, candidate(1)}, big.NewInt(1))
	require.NoError(t, err)
	require.Len(t, executed, 1)
	assert.Equal(t, candidate(1).LimitOrderData.Digest, executed[0].Digest)
	assert.Zero(t, filler.callCount(broken.LimitOrderData.Digest))
	assert.Equal(t, int64(2), e.Stats()["failed"])

	// 补齐金额后立即可以提交
	executed, err = e.ExecuteOrders(context.Background(), []order.ExecutableOrder{candidate(9)}, big.NewInt(1))
	require.NoError(t, err)
	require.Len(t, executed, 1)
	assert.Equal(t, 1, filler.callCount(broken.LimitOrderData.Digest))
	assert.True(t, dedup.AlreadyExecuting(broken.LimitOrderData.Digest))
}

func TestExecuteOrders_ResolverPanicClearsDedup(t *testing.T) {
	filler := newFakeFiller(nil)
	dedup := cache.NewExecutionDedup(time.Minute)
	e, err := New(Config{
		ChainID:           137,
		ReceiverAddresses: map[int64]common.Address{137: receiverAddr},
		ProfitReceiver:    profitReceiver,
		PoolSize:          2,
	}, filler, panicResolver{}, dedup)
	require.NoError(t, err)
	defer e.Close()

	executed, err := e.ExecuteOrders(context.Background(), []order.ExecutableOrder{candidate(4)}, big.NewInt(1))
	require.NoError(t, err)
	assert.Empty(t, executed)
	assert.Equal(t, int64(1), e.Stats()["failed"])
	assert.False(t, dedup.AlreadyExecuting(candidate(4).LimitOrderData.Digest))
}

type panicResolver struct{}

func (panicResolver) KeepTokenIn(_, _ common.Address) bool { panic("resolver broken") }
