package position

import (
	"context"

	"go.uber.org/zap"

	"clmmgate/internal/model"
)

// ListPositions returns all positions held by owner, enriched like
// GetPositionInfo. Positions are walked one at a time to bound RPC load;
// a failure on one position is logged and skipped, never aborting the
// listing. Zero-liquidity positions are omitted.
func (s *Service) ListPositions(ctx context.Context, owner string) ([]model.PositionInfo, error) {
	if owner == "" {
		return nil, model.Errorf(model.KindInvalidRequest, "owner address is required")
	}

	ids, err := s.backend.Positions.PositionIDs(ctx, owner, s.EnumerateLimit)
	if err != nil {
		return nil, err
	}

	out := make([]model.PositionInfo, 0, len(ids))
	for _, id := range ids {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		snap, err := s.backend.Positions.Position(ctx, id)
		if err != nil {
			s.logger.Warn("skip position",
				zap.String("network", s.backend.Network),
				zap.String("owner", owner),
				zap.String("position", id),
				zap.Error(err),
			)
			continue
		}
		if snap.Liquidity == nil || snap.Liquidity.Sign() == 0 {
			continue
		}

		out = append(out, *s.assemble(ctx, snap))
	}
	return out, nil
}
