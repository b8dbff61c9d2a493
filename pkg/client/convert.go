package client

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/fermitrade/pkg/types"
)

// MarginDecimals is the precision of margin amounts (micro-USDC)
const MarginDecimals = 6

// ToCanonical converts a human amount to integer base units:
// v * 10^decimals, truncated toward zero. The float is read at its
// shortest decimal form, so 185.5 is exactly 185.5 and not 185.4999....
func ToCanonical(v float64, decimals uint8) (uint64, error) {
	d, err := fromFloat(v)
	if err != nil {
		return 0, err
	}
	return toUint64(d.Shift(int32(decimals)))
}

// CalculateMargin returns price * quantity / leverage in micro-USDC
func CalculateMargin(price, quantity float64, leverage uint64) (uint64, error) {
	if leverage == 0 {
		return 0, fmt.Errorf("%w: leverage must be at least 1", types.ErrInvalidOrder)
	}
	p, err := fromFloat(price)
	if err != nil {
		return 0, err
	}
	q, err := fromFloat(quantity)
	if err != nil {
		return 0, err
	}

	lev := decimal.NewFromBigInt(new(big.Int).SetUint64(leverage), 0)
	margin := p.Mul(q).Div(lev)
	return toUint64(margin.Shift(MarginDecimals))
}

func fromFloat(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, fmt.Errorf("%w: %v is not a finite number", types.ErrDecimalConversion, v)
	}
	return decimal.NewFromFloat(v), nil
}

func toUint64(d decimal.Decimal) (uint64, error) {
	d = d.Truncate(0)
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %s is negative", types.ErrDecimalConversion, d)
	}
	n := d.BigInt()
	if !n.IsUint64() {
		return 0, fmt.Errorf("%w: %s overflows u64", types.ErrDecimalConversion, d)
	}
	return n.Uint64(), nil
}
