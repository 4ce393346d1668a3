// Package feemath reconstructs uncollected trading fees from CLMM
// fee-accumulator state. All accumulators are unsigned 256-bit Q128
// fixed-point values (scaled by 2^128).
package feemath

import (
	"math/big"

	"github.com/holiman/uint256"
)

// Q128 is the fixed-point scale of the fee-growth accumulators.
var Q128 = new(big.Int).Lsh(big.NewInt(1), 128)

// ClampedSub returns a-b floored at zero. The on-chain accumulators wrap
// modulo 2^256; flooring instead can under-report fees right after a
// wraparound. That behavior is deliberate, see DESIGN.md.
func ClampedSub(a, b *uint256.Int) *uint256.Int {
	if a.Cmp(b) < 0 {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Sub(a, b)
}

// FeeGrowthInside derives the portion of global fee growth attributable to
// the tick range [lower, upper). The range is active when
// lower <= currentTick < upper: lower bound inclusive, upper exclusive.
func FeeGrowthInside(global, lowerOutside, upperOutside *uint256.Int, currentTick, lower, upper int32) *uint256.Int {
	var feeBelow, feeAbove *uint256.Int

	if currentTick >= lower {
		feeBelow = lowerOutside.Clone()
	} else {
		feeBelow = ClampedSub(global, lowerOutside)
	}

	if currentTick < upper {
		feeAbove = upperOutside.Clone()
	} else {
		feeAbove = ClampedSub(global, upperOutside)
	}

	outside := new(uint256.Int).Add(feeBelow, feeAbove)
	return ClampedSub(global, outside)
}

// UncollectedFees computes the fee amount accrued since the position's
// last checkpoint: floor(liquidity * (insideNow - insideLast) / 2^128).
//
// A freshly fetched insideNow can appear smaller than the checkpoint when
// the pool mutates between the position read and the accumulator read; the
// delta is floored at zero so a stale read reports zero for this cycle
// instead of a wrapped value.
func UncollectedFees(liquidity *big.Int, insideNow, insideLast *uint256.Int) *big.Int {
	if liquidity == nil || liquidity.Sign() <= 0 {
		return new(big.Int)
	}
	if insideNow.Cmp(insideLast) < 0 {
		return new(big.Int)
	}

	delta := new(uint256.Int).Sub(insideNow, insideLast)
	out := new(big.Int).Mul(liquidity, delta.ToBig())
	return out.Quo(out, Q128)
}
