package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrading/utrading-limit-relayer/internal/order"
)

var (
	contractAddr = common.HexToAddress("0xce9365dB1C99897f04B3923C03ba9a5f80E8DB87")
	receiverAddr = common.HexToAddress("0x802290173908ed30A9642D6872e252Ef4f6e59A2")
	profitAddr   = common.HexToAddress("0x0c")
	tokenIn      = common.HexToAddress("0x0a")
	tokenOut     = common.HexToAddress("0x0b")
)

type fakeBackend struct {
	mu          sync.Mutex
	estimateErr error
	estimate    uint64
	sendErr     error
	pending     uint64
	nonceCalls  int
	sent        []*types.Transaction
	gasPrice    *big.Int
}

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return b.gasPrice, nil
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return b.estimate, b.estimateErr
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nonceCalls++
	return b.pending, nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	return nil
}

func newTestFiller(t *testing.T, backend *fakeBackend) *Filler {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	f, err := NewFiller(backend, hexutil.Encode(crypto.FromECDSA(key)), FillerConfig{
		ChainID:           137,
		LimitOrderAddress: contractAddr,
		GasLimit:          700000,
	})
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), f.From())
	return f
}

func fillRequest() order.FillRequest {
	return order.FillRequest{
		Order: order.StoredOrder{
			Digest: common.HexToHash("0x01"),
			Order: order.LimitOrder{
				Maker:      common.HexToAddress("0xaa"),
				TokenIn:    tokenIn,
				TokenOut:   tokenOut,
				AmountIn:   big.NewInt(1000),
				AmountOut:  big.NewInt(2000),
				Recipient:  common.HexToAddress("0xbb"),
				StartTime:  big.NewInt(1),
				EndTime:    big.NewInt(2),
				StopPrice:  big.NewInt(0),
				OracleData: []byte{0x01},
				V:          27,
				R:          common.HexToHash("0x11"),
				S:          common.HexToHash("0x22"),
			},
		},
		Path:           []common.Address{tokenIn, tokenOut},
		AmountExternal: big.NewInt(910),
		AmountIn:       big.NewInt(1000),
		Receiver:       receiverAddr,
		ProfitReceiver: profitAddr,
		KeepTokenIn:    true,
		Options:        order.FillOptions{GasPrice: big.NewInt(30_000_000_000)},
	}
}

func TestFill_Success(t *testing.T) {
	backend := &fakeBackend{estimate: 100000, pending: 5}
	f := newTestFiller(t, backend)

	res, err := f.Fill(context.Background(), fillRequest())
	require.NoError(t, err)
	assert.True(t, res.Executed)
	assert.Equal(t, uint64(5), res.Transaction.Nonce)

	res2, err := f.Fill(context.Background(), fillRequest())
	require.NoError(t, err)
	assert.Equal(t, uint64(6), res2.Transaction.Nonce)
	assert.Equal(t, 1, backend.nonceCalls)

	require.Len(t, backend.sent, 2)
	tx := backend.sent[0]
	assert.Equal(t, res.Transaction.Hash, tx.Hash())
	assert.Equal(t, contractAddr, *tx.To())
	assert.Equal(t, uint64(120000), tx.Gas())
	assert.Equal(t, big.NewInt(30_000_000_000), tx.GasPrice())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(137)), tx)
	require.NoError(t, err)
	assert.Equal(t, f.From(), sender)
}

func TestFill_EstimationFailure(t *testing.T) {
	backend := &fakeBackend{estimateErr: errors.New("execution reverted"), pending: 1}
	f := newTestFiller(t, backend)

	res, err := f.Fill(context.Background(), fillRequest())
	require.NoError(t, err)
	assert.False(t, res.Executed)
	assert.Empty(t, backend.sent)
}

func TestFill_ForceExecutionUsesGasLimit(t *testing.T) {
	backend := &fakeBackend{estimateErr: errors.New("execution reverted"), pending: 1}
	f := newTestFiller(t, backend)

	req := fillRequest()
	req.Options.ForceExecution = true
	res, err := f.Fill(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Executed)
	require.Len(t, backend.sent, 1)
	assert.Equal(t, uint64(700000), backend.sent[0].Gas())
}

func TestFill_SendFailureResyncsNonce(t *testing.T) {
	backend := &fakeBackend{estimate: 100000, pending: 3, sendErr: errors.New("connection refused")}
	f := newTestFiller(t, backend)

	_, err := f.Fill(context.Background(), fillRequest())
	assert.ErrorIs(t, err, order.ErrTransport)

	backend.sendErr = nil
	backend.pending = 4
	res, err := f.Fill(context.Background(), fillRequest())
	require.NoError(t, err)
	assert.Equal(t, uint64(4), res.Transaction.Nonce)
	assert.Equal(t, 2, backend.nonceCalls)
}

func TestFill_SuggestsGasPriceWhenMissing(t *testing.T) {
	backend := &fakeBackend{estimate: 50000, gasPrice: big.NewInt(42)}
	f := newTestFiller(t, backend)

	req := fillRequest()
	req.Options.GasPrice = nil
	_, err := f.Fill(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)
	assert.Equal(t, big.NewInt(42), backend.sent[0].GasPrice())
}

func TestCalldata_Encoding(t *testing.T) {
	req := fillRequest()
	data, err := Calldata(req)
	require.NoError(t, err)

	method := parsedLimitOrderABI.Methods[methodFillOrder]
	assert.Equal(t, method.ID, data[:4])

	values, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Len(t, values, 5)
	assert.Equal(t, tokenIn, values[1])
	assert.Equal(t, tokenOut, values[2])
	assert.Equal(t, receiverAddr, values[3])

	receiverData, err := receiverDataArgs.Unpack(values[4].([]byte))
	require.NoError(t, err)
	assert.Equal(t, []common.Address{tokenIn, tokenOut}, receiverData[0])
	assert.Equal(t, big.NewInt(910), receiverData[1])
	assert.Equal(t, profitAddr, receiverData[2])
	assert.Equal(t, true, receiverData[3])

	req.Options.Open = true
	open, err := Calldata(req)
	require.NoError(t, err)
	assert.Equal(t, parsedLimitOrderABI.Methods[methodFillOrderOpen].ID, open[:4])
}

func TestNewFiller_InvalidConfig(t *testing.T) {
	_, err := NewFiller(&fakeBackend{}, "zz", FillerConfig{ChainID: 1, LimitOrderAddress: contractAddr})
	assert.ErrorIs(t, err, order.ErrConfiguration)

	key, _ := crypto.GenerateKey()
	hexKey := hexutil.Encode(crypto.FromECDSA(key))
	_, err = NewFiller(&fakeBackend{}, hexKey, FillerConfig{LimitOrderAddress: contractAddr})
	assert.ErrorIs(t, err, order.ErrConfiguration)

	_, err = NewFiller(&fakeBackend{}, hexKey, FillerConfig{ChainID: 1})
	assert.ErrorIs(t, err, order.ErrConfiguration)
}

func TestGasOracle(t *testing.T) {
	oracle := NewGasOracle(&fakeBackend{gasPrice: big.NewInt(7)})
	price, err := oracle.GasPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(7), price)
}
