package position

import (
	"context"
	"sync"

	"github.com/holiman/uint256"

	"clmmgate/internal/model"
	"clmmgate/internal/retry"
)

// AccumulatorReader fetches the five fee-accumulator reads for a position
// concurrently, each wrapped in the retry policy on its own. If any read
// exhausts retries the whole fetch fails with AccumulatorUnavailable.
type AccumulatorReader struct {
	state  PoolStateReader
	policy retry.Policy
}

func NewAccumulatorReader(state PoolStateReader, policy retry.Policy) *AccumulatorReader {
	return &AccumulatorReader{state: state, policy: policy}
}

// Fetch issues the five reads: global fee growth for both tokens, the
// current tick, and the tick data at both range bounds.
func (r *AccumulatorReader) Fetch(ctx context.Context, pool string, tickLower, tickUpper int32) (*model.PoolAccumulatorState, error) {
	out := &model.PoolAccumulatorState{}
	errs := make([]error, 5)

	var wg sync.WaitGroup
	wg.Add(5)

	go func() {
		defer wg.Done()
		out.FeeGrowthGlobal0, errs[0] = retry.Value(ctx, r.policy, func(ctx context.Context) (*uint256.Int, error) {
			return r.state.FeeGrowthGlobal(ctx, pool, 0)
		})
	}()
	go func() {
		defer wg.Done()
		out.FeeGrowthGlobal1, errs[1] = retry.Value(ctx, r.policy, func(ctx context.Context) (*uint256.Int, error) {
			return r.state.FeeGrowthGlobal(ctx, pool, 1)
		})
	}()
	go func() {
		defer wg.Done()
		out.CurrentTick, errs[2] = retry.Value(ctx, r.policy, func(ctx context.Context) (int32, error) {
			return r.state.CurrentTick(ctx, pool)
		})
	}()
	go func() {
		defer wg.Done()
		errs[3] = r.policy.Do(ctx, func(ctx context.Context) error {
			var err error
			out.LowerOutside0, out.LowerOutside1, err = r.state.TickOutside(ctx, pool, tickLower)
			return err
		})
	}()
	go func() {
		defer wg.Done()
		errs[4] = r.policy.Do(ctx, func(ctx context.Context) error {
			var err error
			out.UpperOutside0, out.UpperOutside1, err = r.state.TickOutside(ctx, pool, tickUpper)
			return err
		})
	}()

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, model.Errorf(model.KindAccumulatorUnavailable, "fetch accumulators for pool %s: %w", pool, err)
		}
	}
	return out, nil
}
