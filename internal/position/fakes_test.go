package position

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"

	"clmmgate/internal/model"
	"clmmgate/internal/retry"
)

func testPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}
}

func q128x(n uint64) *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(n), 128)
}

var (
	tokenWBNB = model.TokenRef{Address: "0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c", Symbol: "WBNB", Decimals: 18}
	tokenUSDT = model.TokenRef{Address: "0x55d398326f99059ff775485246999027b3197955", Symbol: "USDT", Decimals: 18}
)

func testSnapshot() *model.PositionSnapshot {
	return &model.PositionSnapshot{
		ID:                   "42",
		PoolAddress:          "0xpool",
		Token0:               tokenWBNB,
		Token1:               tokenUSDT,
		FeeTier:              500,
		TickLower:            -10,
		TickUpper:            10,
		Liquidity:            big.NewInt(1000),
		TokensOwed0:          big.NewInt(0),
		TokensOwed1:          big.NewInt(0),
		FeeGrowthInside0Last: q128x(50),
		FeeGrowthInside1Last: q128x(50),
	}
}

// fakeState serves accumulator reads, optionally failing some of them.
type fakeState struct {
	global0, global1     *uint256.Int
	tick                 int32
	lowerOut0, lowerOut1 *uint256.Int
	upperOut0, upperOut1 *uint256.Int
	failGlobal, failTick bool
	failTickData         bool
	calls                atomic.Int32
}

func defaultState() *fakeState {
	return &fakeState{
		global0: q128x(100), global1: q128x(100),
		tick:      0,
		lowerOut0: q128x(10), lowerOut1: q128x(10),
		upperOut0: q128x(20), upperOut1: q128x(20),
	}
}

func (f *fakeState) FeeGrowthGlobal(_ context.Context, _ string, idx int) (*uint256.Int, error) {
	f.calls.Add(1)
	if f.failGlobal {
		return nil, fmt.Errorf("rpc down")
	}
	if idx == 0 {
		return f.global0.Clone(), nil
	}
	return f.global1.Clone(), nil
}

func (f *fakeState) CurrentTick(context.Context, string) (int32, error) {
	f.calls.Add(1)
	if f.failTick {
		return 0, fmt.Errorf("rpc down")
	}
	return f.tick, nil
}

func (f *fakeState) TickOutside(_ context.Context, _ string, tick int32) (*uint256.Int, *uint256.Int, error) {
	f.calls.Add(1)
	if f.failTickData {
		return nil, nil, fmt.Errorf("rpc down")
	}
	if tick < 0 {
		return f.lowerOut0.Clone(), f.lowerOut1.Clone(), nil
	}
	return f.upperOut0.Clone(), f.upperOut1.Clone(), nil
}

// fakePositions serves snapshots by id.
type fakePositions struct {
	snaps  map[string]*model.PositionSnapshot
	owners map[string]string
	ids    []string
	errs   map[string]error
}

func (f *fakePositions) Position(_ context.Context, id string) (*model.PositionSnapshot, error) {
	if err, ok := f.errs[id]; ok {
		return nil, err
	}
	snap, ok := f.snaps[id]
	if !ok {
		return nil, model.Errorf(model.KindNotFound, "position %s does not exist", id)
	}
	copied := *snap
	return &copied, nil
}

func (f *fakePositions) OwnerOf(_ context.Context, id string) (string, error) {
	owner, ok := f.owners[id]
	if !ok {
		return "", model.Errorf(model.KindNotFound, "position %s does not exist", id)
	}
	return owner, nil
}

func (f *fakePositions) PositionIDs(_ context.Context, _ string, limit int) ([]string, error) {
	if len(f.ids) > limit {
		return f.ids[:limit], nil
	}
	return f.ids, nil
}

type fakeTokens struct{}

func (fakeTokens) Resolve(_ context.Context, address string) (model.TokenRef, error) {
	return model.TokenRef{Address: address, Symbol: "TOK", Decimals: 18}, nil
}

type fakeEstimator struct {
	amount0, amount1 *big.Int
	err              error
}

func (f *fakeEstimator) AmountsForLiquidity(context.Context, *model.PositionSnapshot) (*big.Int, *big.Int, error) {
	return f.amount0, f.amount1, f.err
}

type fakeTx struct{ label string }

func (t fakeTx) Label() string { return t.label }

type fakePlanner struct {
	plan *ClosePlan
	err  error

	gotMin0, gotMin1 *big.Int
}

func (f *fakePlanner) PlanClose(_ context.Context, _ *model.PositionSnapshot, _ string, min0, min1 *big.Int) (*ClosePlan, error) {
	f.gotMin0, f.gotMin1 = min0, min1
	return f.plan, f.err
}

// fakeSubmitter scripts the submission surface.
type fakeSubmitter struct {
	simulateErr map[string]error
	sendErr     map[string]error
	receipts    map[string]*Receipt
	sendFee     *big.Int

	sent      []string
	simulated []string

	// Balance reads pop from these queues so pre- and post-close reads can
	// observe different values. The last value sticks once a queue drains.
	nativeReads []*big.Int
	tokenReads  map[string][]*big.Int
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{
		simulateErr: map[string]error{},
		sendErr:     map[string]error{},
		receipts:    map[string]*Receipt{},
		sendFee:     big.NewInt(10),
		tokenReads:  map[string][]*big.Int{},
	}
}

func (f *fakeSubmitter) Simulate(_ context.Context, tx Tx) error {
	f.simulated = append(f.simulated, tx.Label())
	return f.simulateErr[tx.Label()]
}

func (f *fakeSubmitter) Send(_ context.Context, tx Tx) (string, *big.Int, error) {
	if err := f.sendErr[tx.Label()]; err != nil {
		return "", nil, err
	}
	f.sent = append(f.sent, tx.Label())
	return "sig-" + tx.Label(), new(big.Int).Set(f.sendFee), nil
}

func (f *fakeSubmitter) Confirm(_ context.Context, signature string) (*Receipt, error) {
	return f.receipts[signature], nil
}

func popBalance(queue *[]*big.Int) (*big.Int, error) {
	if len(*queue) == 0 {
		return nil, fmt.Errorf("no balance scripted")
	}
	bal := (*queue)[0]
	if len(*queue) > 1 {
		*queue = (*queue)[1:]
	}
	return new(big.Int).Set(bal), nil
}

func (f *fakeSubmitter) NativeBalance(context.Context, string) (*big.Int, error) {
	return popBalance(&f.nativeReads)
}

func (f *fakeSubmitter) TokenBalance(_ context.Context, _ string, token string) (*big.Int, error) {
	queue := f.tokenReads[token]
	bal, err := popBalance(&queue)
	f.tokenReads[token] = queue
	return bal, err
}

func testBackend(state *fakeState, positions *fakePositions, estimator *fakeEstimator, planner *fakePlanner, submitter *fakeSubmitter, exec ExecutionModel) Backend {
	return Backend{
		Network:             "bsc-testnet",
		WrappedNativeSymbol: "WBNB",
		Model:               exec,
		State:               state,
		Positions:           positions,
		Tokens:              fakeTokens{},
		Estimator:           estimator,
		Planner:             planner,
		Submitter:           submitter,
	}
}
