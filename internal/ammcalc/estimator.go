package ammcalc

import (
	"context"
	"fmt"
	"math/big"

	"clmmgate/internal/model"
	"clmmgate/internal/position"
)

// Estimator derives expected withdrawal amounts for a position from the
// pool's current tick. It satisfies the engine's AmountEstimator contract.
type Estimator struct {
	state position.PoolStateReader
}

func NewEstimator(state position.PoolStateReader) *Estimator {
	return &Estimator{state: state}
}

// AmountsForLiquidity reads the current tick and converts the position's
// liquidity into token amounts for its range.
func (e *Estimator) AmountsForLiquidity(ctx context.Context, snap *model.PositionSnapshot) (*big.Int, *big.Int, error) {
	currentTick, err := e.state.CurrentTick(ctx, snap.PoolAddress)
	if err != nil {
		return nil, nil, fmt.Errorf("read current tick: %w", err)
	}

	sqrtP, err := SqrtRatioAtTick(currentTick)
	if err != nil {
		return nil, nil, fmt.Errorf("current tick %d: %w", currentTick, err)
	}
	sqrtA, err := SqrtRatioAtTick(snap.TickLower)
	if err != nil {
		return nil, nil, fmt.Errorf("tick lower %d: %w", snap.TickLower, err)
	}
	sqrtB, err := SqrtRatioAtTick(snap.TickUpper)
	if err != nil {
		return nil, nil, fmt.Errorf("tick upper %d: %w", snap.TickUpper, err)
	}

	return AmountsForLiquidity(sqrtP, sqrtA, sqrtB, snap.Liquidity)
}
