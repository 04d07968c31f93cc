package circuit

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ScaleDecimals: фиксированная точка, 6 знаков после запятой
const ScaleDecimals = 6

var (
	ErrNegativeAmount = errors.New("circuit: amount must be non-negative")
	ErrOutOfRange     = fmt.Errorf("circuit: scaled amount does not fit in %d bits", NbBits)
)

// Scale переводит десятичную сумму в целое *10^6, отбрасывая лишние знаки.
func Scale(d decimal.Decimal) (*big.Int, error) {
	if d.IsNegative() {
		return nil, ErrNegativeAmount
	}
	v := d.Shift(ScaleDecimals).Truncate(0).BigInt()
	if v.BitLen() > NbBits {
		return nil, ErrOutOfRange
	}
	return v, nil
}

// Unscale: обратное преобразование для отображения публичного maxSpend.
func Unscale(v *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v, -ScaleDecimals)
}
