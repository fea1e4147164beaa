package chain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// stop-limit-order 合约成交入口
const limitOrderABI = `[
  {"type":"function","name":"fillOrder","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"order","type":"tuple","components":[
      {"name":"maker","type":"address"},
      {"name":"amountIn","type":"uint256"},
      {"name":"amountOut","type":"uint256"},
      {"name":"recipient","type":"address"},
      {"name":"startTime","type":"uint256"},
      {"name":"endTime","type":"uint256"},
      {"name":"stopPrice","type":"uint256"},
      {"name":"oracleAddress","type":"address"},
      {"name":"oracleData","type":"bytes"},
      {"name":"amountToFill","type":"uint256"},
      {"name":"v","type":"uint8"},
      {"name":"r","type":"bytes32"},
      {"name":"s","type":"bytes32"}]},
    {"name":"tokenIn","type":"address"},
    {"name":"tokenOut","type":"address"},
    {"name":"receiver","type":"address"},
    {"name":"data","type":"bytes"}]},
  {"type":"function","name":"fillOrderOpen","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"order","type":"tuple","components":[
      {"name":"maker","type":"address"},
      {"name":"amountIn","type":"uint256"},
      {"name":"amountOut","type":"uint256"},
      {"name":"recipient","type":"address"},
      {"name":"startTime","type":"uint256"},
      {"name":"endTime","type":"uint256"},
      {"name":"stopPrice","type":"uint256"},
      {"name":"oracleAddress","type":"address"},
      {"name":"oracleData","type":"bytes"},
      {"name":"amountToFill","type":"uint256"},
      {"name":"v","type":"uint8"},
      {"name":"r","type":"bytes32"},
      {"name":"s","type":"bytes32"}]},
    {"name":"tokenIn","type":"address"},
    {"name":"tokenOut","type":"address"},
    {"name":"receiver","type":"address"},
    {"name":"data","type":"bytes"}]}
]`

const (
	methodFillOrder     = "fillOrder"
	methodFillOrderOpen = "fillOrderOpen"
)

// orderArgs 与合约 OrderArgs tuple 字段一一对应
type orderArgs struct {
	Maker         common.Address
	AmountIn      *big.Int
	AmountOut     *big.Int
	Recipient     common.Address
	StartTime     *big.Int
	EndTime       *big.Int
	StopPrice     *big.Int
	OracleAddress common.Address
	OracleData    []byte
	AmountToFill  *big.Int
	V             uint8
	R             [32]byte
	S             [32]byte
}

var (
	parsedLimitOrderABI abi.ABI
	receiverDataArgs    abi.Arguments
)

func init() {
	var err error
	parsedLimitOrderABI, err = abi.JSON(strings.NewReader(limitOrderABI))
	if err != nil {
		panic("parse limit order abi: " + err.Error())
	}

	addressSliceTy, _ := abi.NewType("address[]", "", nil)
	uint256Ty, _ := abi.NewType("uint256", "", nil)
	addressTy, _ := abi.NewType("address", "", nil)
	boolTy, _ := abi.NewType("bool", "", nil)
	// receiver 回调数据: (path, amountExternal, to, keepTokenIn)
	receiverDataArgs = abi.Arguments{
		{Name: "path", Type: addressSliceTy},
		{Name: "amountExternal", Type: uint256Ty},
		{Name: "to", Type: addressTy},
		{Name: "keepTokenIn", Type: boolTy},
	}
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
