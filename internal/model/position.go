package model

import (
	"math/big"

	"github.com/holiman/uint256"
)

// TokenRef identifies one side of a pool pair. Immutable once resolved by
// the token registry.
type TokenRef struct {
	Address  string
	Symbol   string
	Decimals uint8
}

// PositionSnapshot is a read-only view of an on-chain liquidity position
// taken at query time. It can be stale by the time a close transaction
// lands; the closer recomputes minimums from it knowingly.
type PositionSnapshot struct {
	ID          string
	PoolAddress string
	Token0      TokenRef
	Token1      TokenRef
	FeeTier     uint32
	TickLower   int32
	TickUpper   int32

	Liquidity   *big.Int
	TokensOwed0 *big.Int
	TokensOwed1 *big.Int

	// Q128 fee-growth checkpoints recorded at the position's last touch.
	FeeGrowthInside0Last *uint256.Int
	FeeGrowthInside1Last *uint256.Int
}

// HasValue reports whether the position still holds liquidity or claimable
// fees. A position with neither is treated as already closed.
func (p *PositionSnapshot) HasValue() bool {
	if p.Liquidity != nil && p.Liquidity.Sign() > 0 {
		return true
	}
	if p.TokensOwed0 != nil && p.TokensOwed0.Sign() > 0 {
		return true
	}
	if p.TokensOwed1 != nil && p.TokensOwed1.Sign() > 0 {
		return true
	}
	return false
}

// PoolAccumulatorState holds the five fee-accumulator reads needed to
// reconstruct uncollected fees for one tick range. Fetched fresh per
// request, never cached.
type PoolAccumulatorState struct {
	FeeGrowthGlobal0 *uint256.Int
	FeeGrowthGlobal1 *uint256.Int
	CurrentTick      int32
	LowerOutside0    *uint256.Int
	LowerOutside1    *uint256.Int
	UpperOutside0    *uint256.Int
	UpperOutside1    *uint256.Int
}

// FeeResult is a non-authoritative fee estimate. Amounts are raw token
// units. Degraded is set when accumulator state could not be fetched and
// the amounts reflect tokensOwed only.
type FeeResult struct {
	Fee0     *big.Int
	Fee1     *big.Int
	Degraded bool
}

// PositionInfo is the assembled response for a single position: the
// snapshot, the fee estimate, and the canonical base/quote assignment.
type PositionInfo struct {
	Position PositionSnapshot
	Fees     FeeResult
	Base     TokenRef
	Quote    TokenRef

	// Fee amounts re-keyed to the base/quote orientation.
	BaseFee  *big.Int
	QuoteFee *big.Int
}
