package asset

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Precision is the fixed-point scale used for prices and normalized reserves.
const Precision = 18

var (
	// One is 10^18, the fixed-point representation of 1.
	One = pow10(Precision)

	pow10Cache = func() [37]*big.Int {
		var out [37]*big.Int
		for i := range out {
			out[i] = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(i)), nil)
		}
		return out
	}()
)

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Pow10 returns 10^n for 0 <= n <= 36. The result must not be mutated.
func Pow10(n uint8) *big.Int {
	return pow10Cache[n]
}

// ScaleTo18 converts a raw token quantity with the given decimals to the
// common 18-decimal base.
func ScaleTo18(raw *big.Int, decimals uint8) *big.Int {
	switch {
	case decimals == Precision:
		return new(big.Int).Set(raw)
	case decimals < Precision:
		return new(big.Int).Mul(raw, Pow10(Precision-decimals))
	default:
		return new(big.Int).Quo(raw, Pow10(decimals-Precision))
	}
}

// ToDecimal converts a raw on-chain quantity into whole-token units.
func ToDecimal(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// FromDecimal converts whole-token units into a raw on-chain quantity,
// truncating anything below the token's precision.
func FromDecimal(d decimal.Decimal, decimals uint8) *big.Int {
	return d.Shift(int32(decimals)).Truncate(0).BigInt()
}

// FixedToDecimal converts an 18-decimal fixed-point value to decimal.
func FixedToDecimal(v *big.Int) decimal.Decimal {
	return ToDecimal(v, Precision)
}

// DecimalToFixed converts a decimal to 18-decimal fixed point.
func DecimalToFixed(d decimal.Decimal) *big.Int {
	return FromDecimal(d, Precision)
}
