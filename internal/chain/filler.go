package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/utrading/utrading-limit-relayer/internal/order"
	"github.com/utrading/utrading-limit-relayer/pkg/logger"
)

// Backend 成交所需的 RPC 能力（ethclient.Client 满足该接口）
type Backend interface {
	GasPriceSuggester
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

type FillerConfig struct {
	ChainID           int64
	LimitOrderAddress common.Address
	GasLimit          uint64 // forceExecution 时使用
}

// Filler 打包 fillOrder 调用，签名并广播
// nonce 在本地分配，发送失败后从 pending nonce 重新同步
type Filler struct {
	backend Backend
	cfg     FillerConfig
	key     *ecdsa.PrivateKey
	from    common.Address
	signer  types.Signer

	mu          sync.Mutex
	nonce       uint64
	nonceLoaded bool
}

func NewFiller(backend Backend, privateKeyHex string, cfg FillerConfig) (*Filler, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, order.Configurationf("invalid private key: %v", err)
	}
	if cfg.ChainID == 0 {
		return nil, order.Configurationf("chain id is not set")
	}
	if cfg.LimitOrderAddress == (common.Address{}) {
		return nil, order.Configurationf("limit order contract address is not set")
	}

	return &Filler{
		backend: backend,
		cfg:     cfg,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(big.NewInt(cfg.ChainID)),
	}, nil
}

// From 签名地址
func (f *Filler) From() common.Address {
	return f.from
}

// Calldata 生成 fillOrder / fillOrderOpen 调用数据
func Calldata(req order.FillRequest) ([]byte, error) {
	lo := req.Order.Order
	data, err := receiverDataArgs.Pack(req.Path, orZero(req.AmountExternal), req.ProfitReceiver, req.KeepTokenIn)
	if err != nil {
		return nil, fmt.Errorf("pack receiver data: %w", err)
	}

	args := orderArgs{
		Maker:         lo.Maker,
		AmountIn:      orZero(lo.AmountIn),
		AmountOut:     orZero(lo.AmountOut),
		Recipient:     lo.Recipient,
		StartTime:     orZero(lo.StartTime),
		EndTime:       orZero(lo.EndTime),
		StopPrice:     orZero(lo.StopPrice),
		OracleAddress: lo.OracleAddress,
		OracleData:    lo.OracleData,
		AmountToFill:  orZero(req.AmountIn),
		V:             lo.V,
		R:             lo.R,
		S:             lo.S,
	}
	if args.OracleData == nil {
		args.OracleData = []byte{}
	}

	method := methodFillOrder
	if req.Options.Open {
		method = methodFillOrderOpen
	}

	return parsedLimitOrderABI.Pack(method, args, lo.TokenIn, lo.TokenOut, req.Receiver, data)
}

// Fill 预估失败且未强制执行时返回 Executed=false，不发送交易
// 签名或广播失败返回 ErrTransport
func (f *Filler) Fill(ctx context.Context, req order.FillRequest) (order.FillResult, error) {
	data, err := Calldata(req)
	if err != nil {
		return order.FillResult{}, fmt.Errorf("%w: %v", order.ErrTransport, err)
	}

	if req.Options.Debug {
		logger.Debug().
			Str("digest", req.Order.Digest.Hex()).
			Str("calldata", hexutil.Encode(data)).
			Msg("fill calldata")
	}

	gasPrice := req.Options.GasPrice
	if gasPrice == nil {
		if gasPrice, err = f.backend.SuggestGasPrice(ctx); err != nil {
			return order.FillResult{}, fmt.Errorf("%w: suggest gas price: %v", order.ErrTransport, err)
		}
	}

	contract := f.cfg.LimitOrderAddress
	gas, err := f.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     f.from,
		To:       &contract,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		if !req.Options.ForceExecution {
			logger.Debug().Err(err).
				Str("digest", req.Order.Digest.Hex()).
				Msg("gas estimation failed")
			return order.FillResult{Executed: false}, nil
		}
		gas = f.cfg.GasLimit
	} else {
		// 20% 余量
		gas += gas / 5
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.nonceLoaded {
		nonce, err := f.backend.PendingNonceAt(ctx, f.from)
		if err != nil {
			return order.FillResult{}, fmt.Errorf("%w: pending nonce: %v", order.ErrTransport, err)
		}
		f.nonce = nonce
		f.nonceLoaded = true
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    f.nonce,
		To:       &contract,
		Value:    new(big.Int),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, f.signer, f.key)
	if err != nil {
		return order.FillResult{}, fmt.Errorf("%w: sign tx: %v", order.ErrTransport, err)
	}

	if err = f.backend.SendTransaction(ctx, signed); err != nil {
		f.nonceLoaded = false
		return order.FillResult{}, fmt.Errorf("%w: send tx: %v", order.ErrTransport, err)
	}

	nonce := f.nonce
	f.nonce++

	return order.FillResult{
		Executed:    true,
		Transaction: order.Transaction{Hash: signed.Hash(), Nonce: nonce},
	}, nil
}
