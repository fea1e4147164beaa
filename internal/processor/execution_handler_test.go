package processor

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrading/utrading-limit-relayer/internal/order"
)

type fakeBatchExecutor struct {
	gasPrice *big.Int
	calls    int
	result   []order.ExecutedOrder
	err      error
}

func (e *fakeBatchExecutor) ExecuteOrders(_ context.Context, candidates []order.ExecutableOrder, gasPrice *big.Int) ([]order.ExecutedOrder, error) {
	e.calls++
	e.gasPrice = gasPrice
	return e.result, e.err
}

type fakeGasPricer struct {
	price *big.Int
	err   error
}

func (g fakeGasPricer) GasPrice(context.Context) (*big.Int, error) {
	return g.price, g.err
}

type fakeSink struct {
	receipts []order.ExecutedOrder
}

func (s *fakeSink) AddAll(receipts []order.ExecutedOrder) error {
	s.receipts = append(s.receipts, receipts...)
	return nil
}

func candidate() order.ExecutableOrder {
	return order.ExecutableOrder{
		LimitOrderData: order.StoredOrder{Digest: common.HexToHash("0x01")},
		InAmount:       big.NewInt(1000),
	}
}

func TestExecutionHandler_UsesMessageGasPrice(t *testing.T) {
	exec := &fakeBatchExecutor{result: []order.ExecutedOrder{receipt(1)}}
	sink := &fakeSink{}
	h := NewExecutionHandler(exec, fakeGasPricer{price: big.NewInt(99)}, sink, time.Second)

	err := h.HandleMessage(CandidateBatchMessage{
		Candidates: []order.ExecutableOrder{candidate()},
		GasPrice:   big.NewInt(7),
		ReceivedAt: time.Now(),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(7), exec.gasPrice.Int64())
	assert.Len(t, sink.receipts, 1)
}

func TestExecutionHandler_FallsBackToOracle(t *testing.T) {
	exec := &fakeBatchExecutor{}
	h := NewExecutionHandler(exec, fakeGasPricer{price: big.NewInt(99)}, &fakeSink{}, time.Second)

	require.NoError(t, h.HandleMessage(&CandidateBatchMessage{Candidates: []order.ExecutableOrder{candidate()}}))
	assert.Equal(t, int64(99), exec.gasPrice.Int64())
}

func TestExecutionHandler_OracleFailureLeavesGasUnset(t *testing.T) {
	exec := &fakeBatchExecutor{}
	h := NewExecutionHandler(exec, fakeGasPricer{err: errors.New("rpc down")}, &fakeSink{}, time.Second)

	require.NoError(t, h.HandleMessage(CandidateBatchMessage{Candidates: []order.ExecutableOrder{candidate()}}))
	assert.Equal(t, 1, exec.calls)
	assert.Nil(t, exec.gasPrice)
}

func TestExecutionHandler_EmptyBatch(t *testing.T) {
	exec := &fakeBatchExecutor{}
	h := NewExecutionHandler(exec, nil, &fakeSink{}, 0)

	require.NoError(t, h.HandleMessage(CandidateBatchMessage{}))
	assert.Zero(t, exec.calls)
}

func TestExecutionHandler_ExecutorError(t *testing.T) {
	exec := &fakeBatchExecutor{err: order.Configurationf("no receiver address for chain id %d", 5)}
	sink := &fakeSink{}
	h := NewExecutionHandler(exec, nil, sink, time.Second)

	err := h.HandleMessage(CandidateBatchMessage{Candidates: []order.ExecutableOrder{candidate()}})
	assert.ErrorIs(t, err, order.ErrConfiguration)
	assert.Empty(t, sink.receipts)
}

func TestExecutionHandler_UnsupportedMessage(t *testing.T) {
	h := NewExecutionHandler(&fakeBatchExecutor{}, nil, &fakeSink{}, time.Second)
	assert.Error(t, h.HandleMessage(errorMessage{}))
}
