// Package ammcalc provides the tick-to-price and liquidity-to-amount math
// needed to estimate what a position withdraws to. Prices are UQ64.96
// fixed-point square roots, as used by CLMM pools.
package ammcalc

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

const (
	// MinTick and MaxTick bound the representable price range.
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

var (
	// Q96 represents 1.0 in UQ64.96.
	Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

	ErrTickOutOfBounds = errors.New("tick out of bounds")
	ErrInvalidRange    = errors.New("tick range is inverted")

	maxUint256 = new(uint256.Int).SetAllOne()

	// sqrt(1.0001^(2^i)) in UQ128.128 for i = 0..19, with the UQ128.128
	// representation of 1 at index 1 as the loop seed.
	ratioConstants = [21]*uint256.Int{
		uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001"),
		uint256.MustFromHex("0x100000000000000000000000000000000"),
		uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
		uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
		uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
		uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
		uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
		uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
		uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
		uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
		uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
		uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
		uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
		uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
		uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
		uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
		uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
		uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
		uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
		uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
		uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
	}

	roundingMask = uint256.NewInt(0xffffffff)
)

// SqrtRatioAtTick returns sqrt(1.0001^tick) * 2^96.
func SqrtRatioAtTick(tick int32) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, ErrTickOutOfBounds
	}

	absTick := uint32(tick)
	if tick < 0 {
		absTick = uint32(-tick)
	}

	ratio := new(uint256.Int)
	if absTick&1 != 0 {
		ratio.Set(ratioConstants[0])
	} else {
		ratio.Set(ratioConstants[1])
	}
	for i := 2; i < len(ratioConstants); i++ {
		if absTick&(1<<(i-1)) != 0 {
			ratio.Mul(ratio, ratioConstants[i])
			ratio.Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	// Convert UQ128.128 to UQ64.96, rounding up.
	rem := new(uint256.Int).And(ratio, roundingMask)
	ratio.Rsh(ratio, 32)
	if !rem.IsZero() {
		ratio.AddUint64(ratio, 1)
	}
	return ratio.ToBig(), nil
}

// AmountsForLiquidity computes the token amounts liquidity converts to at
// the current price, for the range [sqrtA, sqrtB]. Amounts round down; the
// close path applies its own slippage bound on top.
func AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity *big.Int) (amount0, amount1 *big.Int, err error) {
	if sqrtA.Cmp(sqrtB) > 0 {
		return nil, nil, ErrInvalidRange
	}
	if liquidity == nil || liquidity.Sign() == 0 {
		return new(big.Int), new(big.Int), nil
	}

	switch {
	case sqrtP.Cmp(sqrtA) <= 0:
		// Price below range: all token0.
		return amount0ForLiquidity(sqrtA, sqrtB, liquidity), new(big.Int), nil
	case sqrtP.Cmp(sqrtB) >= 0:
		// Price above range: all token1.
		return new(big.Int), amount1ForLiquidity(sqrtA, sqrtB, liquidity), nil
	default:
		return amount0ForLiquidity(sqrtP, sqrtB, liquidity), amount1ForLiquidity(sqrtA, sqrtP, liquidity), nil
	}
}

// amount0ForLiquidity is liquidity * (sqrtB - sqrtA) / (sqrtB * sqrtA) in
// token0 units: the numerator is shifted up by 96 bits to cancel the
// fixed-point scale.
func amount0ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	numerator := new(big.Int).Lsh(liquidity, 96)
	numerator.Mul(numerator, new(big.Int).Sub(sqrtB, sqrtA))
	numerator.Div(numerator, sqrtB)
	return numerator.Div(numerator, sqrtA)
}

// amount1ForLiquidity is liquidity * (sqrtB - sqrtA) / 2^96.
func amount1ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	out := new(big.Int).Mul(liquidity, new(big.Int).Sub(sqrtB, sqrtA))
	return out.Div(out, Q96)
}
