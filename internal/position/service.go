package position

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"clmmgate/internal/feemath"
	"clmmgate/internal/model"
	"clmmgate/internal/retry"
)

// Service runs the position operations for one network backend.
type Service struct {
	backend Backend
	accum   *AccumulatorReader
	policy  retry.Policy
	logger  *zap.Logger

	// EnumerateLimit caps how many position indexes a listing scans.
	EnumerateLimit int
}

func NewService(backend Backend, policy retry.Policy, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		backend:        backend,
		accum:          NewAccumulatorReader(backend.State, policy),
		policy:         policy,
		logger:         logger,
		EnumerateLimit: 200,
	}
}

// GetPositionInfo fetches a position snapshot and enriches it with the
// current uncollected-fee estimate.
func (s *Service) GetPositionInfo(ctx context.Context, positionID string) (*model.PositionInfo, error) {
	if positionID == "" {
		return nil, model.Errorf(model.KindInvalidRequest, "position id is required")
	}

	snap, err := s.backend.Positions.Position(ctx, positionID)
	if err != nil {
		return nil, err
	}

	return s.assemble(ctx, snap), nil
}

// assemble computes fees for a snapshot and canonicalizes the pair. Fee
// enrichment degrades to tokensOwed-only when accumulator state is
// unavailable; position existence was already established and stays fatal
// on its own path.
func (s *Service) assemble(ctx context.Context, snap *model.PositionSnapshot) *model.PositionInfo {
	fees := s.estimateFees(ctx, snap)

	base, quote := ResolveBaseQuote(snap.Token0, snap.Token1, s.backend.WrappedNativeSymbol)

	info := &model.PositionInfo{
		Position: *snap,
		Fees:     fees,
		Base:     base,
		Quote:    quote,
	}
	info.BaseFee, info.QuoteFee = orientToBase(snap, base, fees.Fee0, fees.Fee1)
	return info
}

// estimateFees returns tokensOwed plus the accumulator-derived uncollected
// amount. The accumulator fetch is the enrichment tier: its failure is
// recovered locally, logged at warning, never surfaced.
func (s *Service) estimateFees(ctx context.Context, snap *model.PositionSnapshot) model.FeeResult {
	owed0 := orZero(snap.TokensOwed0)
	owed1 := orZero(snap.TokensOwed1)

	accum, err := s.accum.Fetch(ctx, snap.PoolAddress, snap.TickLower, snap.TickUpper)
	if err != nil {
		s.logger.Warn("fee enrichment degraded to tokensOwed",
			zap.String("network", s.backend.Network),
			zap.String("position", snap.ID),
			zap.String("pool", snap.PoolAddress),
			zap.Error(err),
		)
		return model.FeeResult{Fee0: owed0, Fee1: owed1, Degraded: true}
	}

	inside0 := feemath.FeeGrowthInside(
		accum.FeeGrowthGlobal0, accum.LowerOutside0, accum.UpperOutside0,
		accum.CurrentTick, snap.TickLower, snap.TickUpper,
	)
	inside1 := feemath.FeeGrowthInside(
		accum.FeeGrowthGlobal1, accum.LowerOutside1, accum.UpperOutside1,
		accum.CurrentTick, snap.TickLower, snap.TickUpper,
	)

	fee0 := new(big.Int).Add(owed0, feemath.UncollectedFees(snap.Liquidity, inside0, snap.FeeGrowthInside0Last))
	fee1 := new(big.Int).Add(owed1, feemath.UncollectedFees(snap.Liquidity, inside1, snap.FeeGrowthInside1Last))

	return model.FeeResult{Fee0: fee0, Fee1: fee1}
}

// orientToBase re-keys token0/token1 amounts to the base/quote assignment.
func orientToBase(snap *model.PositionSnapshot, base model.TokenRef, amount0, amount1 *big.Int) (baseAmount, quoteAmount *big.Int) {
	if base == snap.Token0 {
		return orZero(amount0), orZero(amount1)
	}
	return orZero(amount1), orZero(amount0)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
