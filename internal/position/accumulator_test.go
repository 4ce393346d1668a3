package position

import (
	"context"
	"testing"

	"clmmgate/internal/model"
)

func TestAccumulatorFetch(t *testing.T) {
	state := defaultState()
	reader := NewAccumulatorReader(state, testPolicy())

	got, err := reader.Fetch(context.Background(), "0xpool", -10, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.FeeGrowthGlobal0.Cmp(q128x(100)) != 0 || got.FeeGrowthGlobal1.Cmp(q128x(100)) != 0 {
		t.Fatalf("bad globals: %s / %s", got.FeeGrowthGlobal0, got.FeeGrowthGlobal1)
	}
	if got.CurrentTick != 0 {
		t.Fatalf("bad tick: %d", got.CurrentTick)
	}
	if got.LowerOutside0.Cmp(q128x(10)) != 0 || got.UpperOutside0.Cmp(q128x(20)) != 0 {
		t.Fatalf("bad outside values: %s / %s", got.LowerOutside0, got.UpperOutside0)
	}
}

func TestAccumulatorFetchFailsAsUnavailable(t *testing.T) {
	state := defaultState()
	state.failTickData = true
	reader := NewAccumulatorReader(state, testPolicy())

	_, err := reader.Fetch(context.Background(), "0xpool", -10, 10)
	if !model.IsKind(err, model.KindAccumulatorUnavailable) {
		t.Fatalf("expected accumulator_unavailable, got %v", err)
	}
}

func TestAccumulatorFetchRetriesEachRead(t *testing.T) {
	state := defaultState()
	state.failGlobal = true
	reader := NewAccumulatorReader(state, testPolicy())

	_, err := reader.Fetch(context.Background(), "0xpool", -10, 10)
	if err == nil {
		t.Fatalf("expected error")
	}
	// Two global reads retried once each on top of the three healthy reads.
	if calls := state.calls.Load(); calls < 7 {
		t.Fatalf("expected per-read retries, got %d calls", calls)
	}
}
