package position

import (
	"context"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"clmmgate/internal/model"
	"clmmgate/internal/retry"
)

// slippageBps is the tolerance applied to expected withdrawal amounts when
// computing on-chain minimums: 1%.
const slippageBps = 100

const bpsDenominator = 10000

// closeRun carries the state accumulated while the close state machine
// advances: Validating -> Simulating -> Submitting -> Confirming.
type closeRun struct {
	owner string
	snap  *model.PositionSnapshot
	fees  model.FeeResult

	amount0, amount1       *big.Int
	amount0Min, amount1Min *big.Int

	plan *ClosePlan
}

// ClosePosition fully withdraws a position: removes liquidity, collects
// fees, and closes the position account. Once a transaction has been
// submitted the engine always attempts to observe and report the outcome.
func (s *Service) ClosePosition(ctx context.Context, owner, positionID string) (*model.CloseResult, error) {
	run, err := s.validateClose(ctx, owner, positionID)
	if err != nil {
		return nil, err
	}
	if err := s.simulateClose(ctx, run); err != nil {
		return nil, err
	}

	var result *model.CloseResult
	switch s.backend.Model {
	case Sequential:
		result, err = s.closeSequential(ctx, run)
	default:
		result, err = s.closeAtomic(ctx, run)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("position closed",
		zap.String("network", s.backend.Network),
		zap.String("position", positionID),
		zap.String("signature", result.Signature),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

// validateClose is the Validating state: the position must exist, still
// hold value, and belong to the caller.
func (s *Service) validateClose(ctx context.Context, owner, positionID string) (*closeRun, error) {
	if positionID == "" {
		return nil, model.Errorf(model.KindInvalidRequest, "position id is required")
	}
	if owner == "" {
		return nil, model.Errorf(model.KindInvalidRequest, "owner address is required")
	}

	snap, err := s.backend.Positions.Position(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if !snap.HasValue() {
		return nil, model.Errorf(model.KindAlreadyClosed, "position %s has no liquidity and no owed fees", positionID)
	}

	actualOwner, err := s.backend.Positions.OwnerOf(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(actualOwner, owner) {
		return nil, model.Errorf(model.KindForbidden, "position %s is not owned by %s", positionID, owner)
	}

	return &closeRun{owner: owner, snap: snap}, nil
}

// simulateClose is the Simulating state: expected withdrawal amounts from
// liquidity, fee estimate, slippage-bounded minimums, and the transaction
// plan.
func (s *Service) simulateClose(ctx context.Context, run *closeRun) error {
	amount0, amount1, err := s.backend.Estimator.AmountsForLiquidity(ctx, run.snap)
	if err != nil {
		return model.Errorf(model.KindSimulationFailed, "estimate withdrawal amounts: %w", err)
	}
	run.amount0 = orZero(amount0)
	run.amount1 = orZero(amount1)
	run.amount0Min = applySlippage(run.amount0)
	run.amount1Min = applySlippage(run.amount1)

	// Fee estimate degrades to tokensOwed when accumulators are down; the
	// close itself proceeds.
	run.fees = s.estimateFees(ctx, run.snap)

	plan, err := s.backend.Planner.PlanClose(ctx, run.snap, run.owner, run.amount0Min, run.amount1Min)
	if err != nil {
		return model.Errorf(model.KindSimulationFailed, "plan close: %w", err)
	}
	if plan == nil || len(plan.Txs) == 0 {
		return model.Errorf(model.KindSimulationFailed, "planner produced no transactions")
	}
	run.plan = plan
	return nil
}

// closeAtomic submits the single multicall transaction and waits for its
// receipt.
func (s *Service) closeAtomic(ctx context.Context, run *closeRun) (*model.CloseResult, error) {
	if len(run.plan.Txs) != 1 {
		return nil, model.Errorf(model.KindSimulationFailed, "atomic close expects one transaction, planner produced %d", len(run.plan.Txs))
	}
	tx := run.plan.Txs[0]

	if err := s.backend.Submitter.Simulate(ctx, tx); err != nil {
		return nil, model.Errorf(model.KindSimulationFailed, "%s: %w", tx.Label(), err)
	}

	signature, sendFee, err := s.backend.Submitter.Send(ctx, tx)
	if err != nil {
		return nil, model.Errorf(model.KindSubmissionFailed, "%s: %w", tx.Label(), err)
	}

	result := s.resultFromExpected(run)
	result.Signature = signature
	result.Fee = orZero(sendFee)

	receipt, err := s.awaitReceipt(ctx, signature)
	if err != nil || receipt == nil {
		// Submitted but not observed: report pending rather than failing.
		if err != nil {
			s.logger.Warn("confirmation not observed",
				zap.String("signature", signature), zap.Error(err))
		}
		result.Status = model.StatusPending
		return result, nil
	}
	if !receipt.Success {
		return nil, model.Errorf(model.KindSubmissionFailed, "transaction %s reverted on-chain", signature)
	}

	result.Status = model.StatusConfirmed
	if receipt.Fee != nil {
		result.Fee = receipt.Fee
	}
	return result, nil
}

// awaitReceipt polls for a receipt under the retry policy. Returns nil
// receipt when the transaction stayed unobserved.
func (s *Service) awaitReceipt(ctx context.Context, signature string) (*Receipt, error) {
	return retry.Value(ctx, s.policy, func(ctx context.Context) (*Receipt, error) {
		receipt, err := s.backend.Submitter.Confirm(ctx, signature)
		if err != nil {
			return nil, err
		}
		if receipt == nil {
			return nil, model.Errorf(model.KindInternal, "transaction %s not observed yet", signature)
		}
		return receipt, nil
	})
}

// resultFromExpected fills a CloseResult with the simulated withdrawal
// amounts and the fee estimate, oriented to base/quote.
func (s *Service) resultFromExpected(run *closeRun) *model.CloseResult {
	base, _ := ResolveBaseQuote(run.snap.Token0, run.snap.Token1, s.backend.WrappedNativeSymbol)

	result := &model.CloseResult{
		Network:              s.backend.Network,
		Fee:                  new(big.Int),
		PositionRentRefunded: new(big.Int),
	}
	result.BaseTokenAmountRemoved, result.QuoteTokenAmountRemoved = orientToBase(run.snap, base, run.amount0, run.amount1)
	result.BaseFeeAmountCollected, result.QuoteFeeAmountCollected = orientToBase(run.snap, base, run.fees.Fee0, run.fees.Fee1)
	return result
}

// applySlippage reduces an expected amount by the slippage tolerance so an
// under-delivering transaction reverts on-chain instead.
func applySlippage(amount *big.Int) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(bpsDenominator-slippageBps))
	return out.Quo(out, big.NewInt(bpsDenominator))
}
