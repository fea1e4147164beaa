package dao

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/utrading/utrading-limit-relayer/internal/models"
	"github.com/utrading/utrading-limit-relayer/internal/order"
)

// bigString 大数编码为十进制字符串，nil 视为 0
func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBig(field, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s %q", field, s)
	}
	return v, nil
}

// encodeTimestamp 时间戳必须能无损往返 int64 十进制编码
func encodeTimestamp(field string, v *big.Int) (int64, error) {
	if v == nil {
		return 0, fmt.Errorf("%w: %s is missing", order.ErrOverflow, field)
	}
	s := v.String()
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || strconv.FormatInt(n, 10) != s {
		return 0, fmt.Errorf("%w: %s %s does not fit int64", order.ErrOverflow, field, s)
	}
	return n, nil
}

func encodeFields(o order.LimitOrder) (models.OrderFields, error) {
	start, err := encodeTimestamp("startTime", o.StartTime)
	if err != nil {
		return models.OrderFields{}, err
	}
	end, err := encodeTimestamp("endTime", o.EndTime)
	if err != nil {
		return models.OrderFields{}, err
	}

	return models.OrderFields{
		Maker:            o.Maker.Hex(),
		TokenIn:          o.TokenIn.Hex(),
		TokenOut:         o.TokenOut.Hex(),
		TokenInDecimals:  o.TokenInDecimals,
		TokenOutDecimals: o.TokenOutDecimals,
		AmountIn:         bigString(o.AmountIn),
		AmountOut:        bigString(o.AmountOut),
		Recipient:        o.Recipient.Hex(),
		StartTime:        start,
		EndTime:          end,
		StopPrice:        bigString(o.StopPrice),
		OracleAddress:    o.OracleAddress.Hex(),
		OracleData:       hexutil.Encode(o.OracleData),
		V:                o.V,
		R:                o.R.Hex(),
		S:                o.S.Hex(),
		ChainID:          o.ChainID,
	}, nil
}

func decodeFields(f models.OrderFields) (order.LimitOrder, error) {
	amountIn, err := parseBig("amountIn", f.AmountIn)
	if err != nil {
		return order.LimitOrder{}, err
	}
	amountOut, err := parseBig("amountOut", f.AmountOut)
	if err != nil {
		return order.LimitOrder{}, err
	}
	stopPrice, err := parseBig("stopPrice", f.StopPrice)
	if err != nil {
		return order.LimitOrder{}, err
	}
	oracleData, err := hexutil.Decode(f.OracleData)
	if err != nil {
		oracleData = nil
	}

	return order.LimitOrder{
		Maker:            common.HexToAddress(f.Maker),
		TokenIn:          common.HexToAddress(f.TokenIn),
		TokenOut:         common.HexToAddress(f.TokenOut),
		TokenInDecimals:  f.TokenInDecimals,
		TokenOutDecimals: f.TokenOutDecimals,
		AmountIn:         amountIn,
		AmountOut:        amountOut,
		Recipient:        common.HexToAddress(f.Recipient),
		StartTime:        big.NewInt(f.StartTime),
		EndTime:          big.NewInt(f.EndTime),
		StopPrice:        stopPrice,
		OracleAddress:    common.HexToAddress(f.OracleAddress),
		OracleData:       oracleData,
		V:                f.V,
		R:                common.HexToHash(f.R),
		S:                common.HexToHash(f.S),
		ChainID:          f.ChainID,
	}, nil
}

// toOrderRow pairAddress 总是由 (tokenIn, tokenOut) 重新计算
func toOrderRow(o order.StoredOrder, pairs order.PairAddresser) (*models.LimitOrder, error) {
	if o.Price != nil && o.Price.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative price %s", order.ErrOverflow, o.Price)
	}

	fields, err := encodeFields(o.Order)
	if err != nil {
		return nil, err
	}

	return &models.LimitOrder{
		Digest:      o.Digest.Hex(),
		Price:       bigString(o.Price),
		PairAddress: pairs.PairAddress(o.Order.TokenIn, o.Order.TokenOut).Hex(),
		Valid:       true,
		OrderFields: fields,
	}, nil
}

func fromOrderRow(row *models.LimitOrder) (order.StoredOrder, error) {
	lo, err := decodeFields(row.OrderFields)
	if err != nil {
		return order.StoredOrder{}, fmt.Errorf("order %s: %w", row.Digest, err)
	}
	price, err := parseBig("price", row.Price)
	if err != nil {
		return order.StoredOrder{}, fmt.Errorf("order %s: %w", row.Digest, err)
	}

	return order.StoredOrder{
		Digest:      common.HexToHash(row.Digest),
		Price:       price,
		Order:       lo,
		PairAddress: common.HexToAddress(row.PairAddress),
		Valid:       row.Valid,
	}, nil
}

func toReceiptRow(r order.ExecutedOrder) (*models.ExecutedOrder, error) {
	fields, err := encodeFields(r.Order)
	if err != nil {
		return nil, err
	}

	return &models.ExecutedOrder{
		Digest:     r.Digest.Hex(),
		Order:      fields,
		FillAmount: bigString(r.FillAmount),
		TxHash:     r.TxHash.Hex(),
		Status:     int8(r.Status),
		CreatedAt:  r.SubmittedAt,
	}, nil
}

func fromReceiptRow(row *models.ExecutedOrder) (order.ExecutedOrder, error) {
	lo, err := decodeFields(row.Order)
	if err != nil {
		return order.ExecutedOrder{}, fmt.Errorf("receipt %s: %w", row.TxHash, err)
	}
	fill, err := parseBig("fillAmount", row.FillAmount)
	if err != nil {
		return order.ExecutedOrder{}, fmt.Errorf("receipt %s: %w", row.TxHash, err)
	}

	return order.ExecutedOrder{
		Order:       lo,
		Digest:      common.HexToHash(row.Digest),
		FillAmount:  fill,
		TxHash:      common.HexToHash(row.TxHash),
		Status:      order.Status(row.Status),
		SubmittedAt: row.CreatedAt,
	}, nil
}
