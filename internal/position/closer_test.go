package position

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"clmmgate/internal/model"
)

func closablePositions() *fakePositions {
	return &fakePositions{
		snaps:  map[string]*model.PositionSnapshot{"42": testSnapshot()},
		owners: map[string]string{"42": "0xowner"},
	}
}

func TestCloseAtomicConfirmed(t *testing.T) {
	svc, submitter, planner := newTestService(defaultState(), closablePositions(), Atomic)
	submitter.receipts["sig-close"] = &Receipt{Success: true, Fee: big.NewInt(21000)}

	result, err := svc.ClosePosition(context.Background(), "0xowner", "42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != model.StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", result.Status)
	}
	if result.Signature != "sig-close" {
		t.Fatalf("signature = %s", result.Signature)
	}
	if result.Fee.Cmp(big.NewInt(21000)) != 0 {
		t.Fatalf("fee = %s, want receipt fee 21000", result.Fee)
	}

	// Simulated before sent.
	if len(submitter.simulated) != 1 || len(submitter.sent) != 1 {
		t.Fatalf("simulate/send counts: %d/%d", len(submitter.simulated), len(submitter.sent))
	}

	// 1% slippage on 100000/200000.
	if planner.gotMin0.Cmp(big.NewInt(99000)) != 0 || planner.gotMin1.Cmp(big.NewInt(198000)) != 0 {
		t.Fatalf("minimums = %s / %s, want 99000 / 198000", planner.gotMin0, planner.gotMin1)
	}

	// WBNB is token0 and the wrapped native, so base amounts come from side 0.
	if result.BaseTokenAmountRemoved.Cmp(big.NewInt(100000)) != 0 {
		t.Fatalf("base removed = %s, want 100000", result.BaseTokenAmountRemoved)
	}
	if result.QuoteTokenAmountRemoved.Cmp(big.NewInt(200000)) != 0 {
		t.Fatalf("quote removed = %s, want 200000", result.QuoteTokenAmountRemoved)
	}
}

// A close on a position with tokensOwed=0 but a positive accumulator delta
// must still report collected fees; reading tokensOwed alone is not enough.
func TestCloseReportsAccruedFeesNotJustTokensOwed(t *testing.T) {
	svc, submitter, _ := newTestService(defaultState(), closablePositions(), Atomic)
	submitter.receipts["sig-close"] = &Receipt{Success: true, Fee: big.NewInt(21000)}

	result, err := svc.ClosePosition(context.Background(), "0xowner", "42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BaseFeeAmountCollected.Sign() <= 0 {
		t.Fatalf("base fee collected = %s, want > 0", result.BaseFeeAmountCollected)
	}
	if result.BaseFeeAmountCollected.Cmp(big.NewInt(20000)) != 0 {
		t.Fatalf("base fee collected = %s, want 20000", result.BaseFeeAmountCollected)
	}
}

func TestCloseAtomicUnobservedIsPending(t *testing.T) {
	svc, submitter, _ := newTestService(defaultState(), closablePositions(), Atomic)
	// No receipt scripted: confirmation stays unobserved.
	_ = submitter

	result, err := svc.ClosePosition(context.Background(), "0xowner", "42")
	if err != nil {
		t.Fatalf("unobserved confirmation must not fail: %v", err)
	}
	if result.Status != model.StatusPending {
		t.Fatalf("status = %s, want pending", result.Status)
	}
	if result.Fee.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("fee = %s, want send-time fee 10", result.Fee)
	}
}

func TestCloseAtomicRevertIsSubmissionFailed(t *testing.T) {
	svc, submitter, _ := newTestService(defaultState(), closablePositions(), Atomic)
	submitter.receipts["sig-close"] = &Receipt{Success: false}

	_, err := svc.ClosePosition(context.Background(), "0xowner", "42")
	if !model.IsKind(err, model.KindSubmissionFailed) {
		t.Fatalf("expected submission_failed, got %v", err)
	}
}

func TestCloseValidation(t *testing.T) {
	positions := closablePositions()
	closed := testSnapshot()
	closed.ID = "7"
	closed.Liquidity = big.NewInt(0)
	positions.snaps["7"] = closed
	positions.owners["7"] = "0xowner"
	positions.errs = map[string]error{
		"burned": model.Errorf(model.KindNotFound, "invalid token id"),
	}

	svc, _, _ := newTestService(defaultState(), positions, Atomic)
	ctx := context.Background()

	if _, err := svc.ClosePosition(ctx, "0xowner", ""); !model.IsKind(err, model.KindInvalidRequest) {
		t.Fatalf("missing id: got %v", err)
	}
	if _, err := svc.ClosePosition(ctx, "", "42"); !model.IsKind(err, model.KindInvalidRequest) {
		t.Fatalf("missing owner: got %v", err)
	}
	if _, err := svc.ClosePosition(ctx, "0xowner", "burned"); !model.IsKind(err, model.KindNotFound) {
		t.Fatalf("invalid token id must map to not_found, got %v", err)
	}
	if _, err := svc.ClosePosition(ctx, "0xsomeoneelse", "42"); !model.IsKind(err, model.KindForbidden) {
		t.Fatalf("wrong owner: got %v", err)
	}
	if _, err := svc.ClosePosition(ctx, "0xowner", "7"); !model.IsKind(err, model.KindAlreadyClosed) {
		t.Fatalf("empty position: got %v", err)
	}
}

func TestCloseOwnerCheckIsCaseInsensitive(t *testing.T) {
	svc, submitter, _ := newTestService(defaultState(), closablePositions(), Atomic)
	submitter.receipts["sig-close"] = &Receipt{Success: true}

	if _, err := svc.ClosePosition(context.Background(), "0xOWNER", "42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCloseSimulationFailureSendsNothing(t *testing.T) {
	svc, submitter, _ := newTestService(defaultState(), closablePositions(), Atomic)
	submitter.simulateErr["close"] = fmt.Errorf("execution reverted: STF")

	_, err := svc.ClosePosition(context.Background(), "0xowner", "42")
	if !model.IsKind(err, model.KindSimulationFailed) {
		t.Fatalf("expected simulation_failed, got %v", err)
	}
	if len(submitter.sent) != 0 {
		t.Fatalf("nothing must be sent after a failed simulation")
	}
}

func TestCloseProceedsWhenFeeEnrichmentDegrades(t *testing.T) {
	state := defaultState()
	state.failGlobal = true
	snap := testSnapshot()
	snap.TokensOwed0 = big.NewInt(123)
	positions := &fakePositions{
		snaps:  map[string]*model.PositionSnapshot{"42": snap},
		owners: map[string]string{"42": "0xowner"},
	}

	svc, submitter, _ := newTestService(state, positions, Atomic)
	submitter.receipts["sig-close"] = &Receipt{Success: true}

	result, err := svc.ClosePosition(context.Background(), "0xowner", "42")
	if err != nil {
		t.Fatalf("degraded enrichment must not block the close: %v", err)
	}
	if result.BaseFeeAmountCollected.Cmp(big.NewInt(123)) != 0 {
		t.Fatalf("base fee = %s, want tokensOwed 123", result.BaseFeeAmountCollected)
	}
}
