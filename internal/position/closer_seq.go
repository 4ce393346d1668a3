package position

import (
	"context"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"clmmgate/internal/model"
)

// stepOutcome records one sent transaction of a sequential close.
type stepOutcome struct {
	label     string
	signature string
	fee       *big.Int
}

func spentFees(outcomes []stepOutcome) *big.Int {
	total := new(big.Int)
	for _, o := range outcomes {
		total.Add(total, orZero(o.fee))
	}
	return total
}

// closeSequential drives the multi-transaction close: every transaction is
// simulated before send, then sent and confirmed strictly in order, because
// later transactions assume state mutated by earlier ones. The last
// transaction's signature is the operation's canonical signature.
func (s *Service) closeSequential(ctx context.Context, run *closeRun) (*model.CloseResult, error) {
	pre0, pre1, balancesKnown := s.pairBalances(ctx, run)

	outcomes := make([]stepOutcome, 0, len(run.plan.Txs))
	lastObserved := false

	for i, tx := range run.plan.Txs {
		if err := s.backend.Submitter.Simulate(ctx, tx); err != nil {
			return nil, s.sequentialFailure(model.KindSimulationFailed, tx.Label(), outcomes, err)
		}

		signature, fee, err := s.backend.Submitter.Send(ctx, tx)
		if err != nil {
			return nil, s.sequentialFailure(model.KindSubmissionFailed, tx.Label(), outcomes, err)
		}
		outcomes = append(outcomes, stepOutcome{label: tx.Label(), signature: signature, fee: fee})

		receipt, err := s.awaitReceipt(ctx, signature)
		observed := err == nil && receipt != nil
		if observed && receipt.Fee != nil {
			outcomes[len(outcomes)-1].fee = receipt.Fee
		}
		if observed && !receipt.Success {
			return nil, s.sequentialFailure(model.KindSubmissionFailed, tx.Label(), outcomes,
				model.Errorf(model.KindSubmissionFailed, "transaction %s failed on-chain", signature))
		}

		last := i == len(run.plan.Txs)-1
		if last {
			lastObserved = observed
			break
		}
		if !observed {
			// A later transaction depends on this one landing; without an
			// observed receipt the pipeline cannot continue.
			return nil, s.sequentialFailure(model.KindSubmissionFailed, tx.Label(), outcomes,
				model.Errorf(model.KindSubmissionFailed, "transaction %s not observed, cannot continue pipeline", signature))
		}
	}

	result := s.resultFromExpected(run)
	result.Signature = outcomes[len(outcomes)-1].signature
	result.Fee = spentFees(outcomes)
	result.PositionRentRefunded = orZero(run.plan.ExpectedRentRefund)
	if lastObserved {
		result.Status = model.StatusConfirmed
	} else {
		result.Status = model.StatusPending
	}

	if balancesKnown {
		s.reconcile(ctx, run, result, pre0, pre1)
	}
	return result, nil
}

// sequentialFailure wraps a mid-pipeline error with what was already
// spent, so partial failure stays reportable.
func (s *Service) sequentialFailure(kind model.Kind, label string, outcomes []stepOutcome, err error) error {
	spent := spentFees(outcomes)
	s.logger.Warn("sequential close aborted",
		zap.String("network", s.backend.Network),
		zap.String("step", label),
		zap.Int("transactions_sent", len(outcomes)),
		zap.String("fees_spent", spent.String()),
		zap.Error(err),
	)
	return model.Errorf(kind, "step %s after %d sent transactions (fees spent %s): %w",
		label, len(outcomes), spent, err)
}

// pairBalances reads the owner's balances for both pool tokens before
// submission. Reconciliation is skipped when they cannot be read.
func (s *Service) pairBalances(ctx context.Context, run *closeRun) (bal0, bal1 *big.Int, ok bool) {
	read := func(tok model.TokenRef) (*big.Int, error) {
		if s.isNative(tok) {
			return s.backend.Submitter.NativeBalance(ctx, run.owner)
		}
		return s.backend.Submitter.TokenBalance(ctx, run.owner, tok.Address)
	}

	b0, err0 := read(run.snap.Token0)
	b1, err1 := read(run.snap.Token1)
	if err0 != nil || err1 != nil {
		s.logger.Warn("balance read failed, skipping reconciliation",
			zap.String("position", run.snap.ID),
			zap.NamedError("token0", err0),
			zap.NamedError("token1", err1),
		)
		return nil, nil, false
	}
	return b0, b1, true
}

// reconcile replaces the simulated withdrawal amounts with amounts derived
// from observed balance deltas. On the native-asset side a raw delta
// intermixes removed liquidity, collected fees, the rent refund, and the
// transaction fee paid; the known parts are subtracted back out.
func (s *Service) reconcile(ctx context.Context, run *closeRun, result *model.CloseResult, pre0, pre1 *big.Int) {
	post0, post1, ok := s.pairBalances(ctx, run)
	if !ok {
		return
	}

	removed0 := ReconcileRemoved(new(big.Int).Sub(post0, pre0), run.fees.Fee0,
		result.PositionRentRefunded, result.Fee, s.isNative(run.snap.Token0))
	removed1 := ReconcileRemoved(new(big.Int).Sub(post1, pre1), run.fees.Fee1,
		result.PositionRentRefunded, result.Fee, s.isNative(run.snap.Token1))

	base, _ := ResolveBaseQuote(run.snap.Token0, run.snap.Token1, s.backend.WrappedNativeSymbol)
	result.BaseTokenAmountRemoved, result.QuoteTokenAmountRemoved = orientToBase(run.snap, base, removed0, removed1)
}

func (s *Service) isNative(tok model.TokenRef) bool {
	return strings.EqualFold(tok.Symbol, s.backend.WrappedNativeSymbol)
}

// ReconcileRemoved disentangles a raw balance delta into the removed
// liquidity amount:
//
//	removed = max(0, rawDelta - feeCollected - rentRefund(if native) + txFee(if native))
//
// The transaction fee is added back because it was deducted from the
// observed native balance delta. Negative intermediates clamp to zero for
// display.
func ReconcileRemoved(rawDelta, feeCollected, rentRefund, txFee *big.Int, native bool) *big.Int {
	out := new(big.Int).Sub(orZero(rawDelta), orZero(feeCollected))
	if native {
		out.Sub(out, orZero(rentRefund))
		out.Add(out, orZero(txFee))
	}
	if out.Sign() < 0 {
		return new(big.Int)
	}
	return out
}
