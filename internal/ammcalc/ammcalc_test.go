package ammcalc

import (
	"math/big"
	"testing"
)

func TestSqrtRatioAtTickZero(t *testing.T) {
	got, err := SqrtRatioAtTick(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Cmp(Q96) != 0 {
		t.Fatalf("sqrt ratio at tick 0 = %s, want Q96 (%s)", got, Q96)
	}
}

func TestSqrtRatioAtTickBounds(t *testing.T) {
	minRatio, err := SqrtRatioAtTick(MinTick)
	if err != nil {
		t.Fatalf("min tick: %v", err)
	}
	if want := big.NewInt(4295128739); minRatio.Cmp(want) != 0 {
		t.Fatalf("sqrt ratio at min tick = %s, want %s", minRatio, want)
	}

	maxRatio, err := SqrtRatioAtTick(MaxTick)
	if err != nil {
		t.Fatalf("max tick: %v", err)
	}
	want, _ := new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)
	if maxRatio.Cmp(want) != 0 {
		t.Fatalf("sqrt ratio at max tick = %s, want %s", maxRatio, want)
	}
}

func TestSqrtRatioAtTickOutOfBounds(t *testing.T) {
	if _, err := SqrtRatioAtTick(MaxTick + 1); err == nil {
		t.Fatalf("expected error above max tick")
	}
	if _, err := SqrtRatioAtTick(MinTick - 1); err == nil {
		t.Fatalf("expected error below min tick")
	}
}

func TestSqrtRatioMonotonic(t *testing.T) {
	prev, _ := SqrtRatioAtTick(-100)
	for tick := int32(-99); tick <= 100; tick++ {
		cur, err := SqrtRatioAtTick(tick)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		if cur.Cmp(prev) <= 0 {
			t.Fatalf("sqrt ratio not increasing at tick %d", tick)
		}
		prev = cur
	}
}

func TestAmountsForLiquidityInRange(t *testing.T) {
	sqrtA, _ := SqrtRatioAtTick(-600)
	sqrtP, _ := SqrtRatioAtTick(0)
	sqrtB, _ := SqrtRatioAtTick(600)
	liquidity := big.NewInt(1_000_000_000)

	amount0, amount1, err := AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount0.Sign() <= 0 || amount1.Sign() <= 0 {
		t.Fatalf("in-range position must hold both tokens: %s / %s", amount0, amount1)
	}
	// Symmetric range around the current price holds near-equal value.
	diff := new(big.Int).Sub(amount0, amount1)
	diff.Abs(diff)
	if diff.Cmp(new(big.Int).Div(amount0, big.NewInt(50))) > 0 {
		t.Fatalf("symmetric range amounts diverge too much: %s / %s", amount0, amount1)
	}
}

func TestAmountsForLiquidityOutOfRange(t *testing.T) {
	sqrtA, _ := SqrtRatioAtTick(100)
	sqrtB, _ := SqrtRatioAtTick(200)
	liquidity := big.NewInt(1_000_000)

	below, _ := SqrtRatioAtTick(50)
	amount0, amount1, err := AmountsForLiquidity(below, sqrtA, sqrtB, liquidity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount0.Sign() <= 0 || amount1.Sign() != 0 {
		t.Fatalf("below range: %s / %s, want all token0", amount0, amount1)
	}

	above, _ := SqrtRatioAtTick(250)
	amount0, amount1, err = AmountsForLiquidity(above, sqrtA, sqrtB, liquidity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount0.Sign() != 0 || amount1.Sign() <= 0 {
		t.Fatalf("above range: %s / %s, want all token1", amount0, amount1)
	}
}

func TestAmountsForLiquidityZeroLiquidity(t *testing.T) {
	sqrtA, _ := SqrtRatioAtTick(-600)
	sqrtB, _ := SqrtRatioAtTick(600)
	amount0, amount1, err := AmountsForLiquidity(Q96, sqrtA, sqrtB, big.NewInt(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount0.Sign() != 0 || amount1.Sign() != 0 {
		t.Fatalf("zero liquidity: %s / %s", amount0, amount1)
	}
}

func TestAmountsForLiquidityInvertedRange(t *testing.T) {
	sqrtA, _ := SqrtRatioAtTick(600)
	sqrtB, _ := SqrtRatioAtTick(-600)
	if _, _, err := AmountsForLiquidity(Q96, sqrtA, sqrtB, big.NewInt(1)); err == nil {
		t.Fatalf("expected error for inverted range")
	}
}
