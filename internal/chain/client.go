package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Dial 连接 RPC 节点并校验链 ID
func Dial(ctx context.Context, rpcURL string, expectedChainID int64) (*ethclient.Client, error) {
	cli, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc failed: %w", err)
	}

	chainID, err := cli.ChainID(ctx)
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("query chain id failed: %w", err)
	}
	if chainID.Int64() != expectedChainID {
		cli.Close()
		return nil, fmt.Errorf("rpc chain id %s does not match configured %d", chainID, expectedChainID)
	}

	return cli, nil
}

type GasPriceSuggester interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// GasOracle 当前 gas price
type GasOracle struct {
	backend GasPriceSuggester
}

func NewGasOracle(backend GasPriceSuggester) *GasOracle {
	return &GasOracle{backend: backend}
}

func (o *GasOracle) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := o.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price failed: %w", err)
	}
	return price, nil
}
