// Package position implements the fee accrual and close engine for CLMM
// liquidity positions. Chain specifics stay behind the typed interfaces in
// this file; raw RPC decoding happens inside each chain adapter.
package position

import (
	"context"
	"math/big"

	"github.com/holiman/uint256"

	"clmmgate/internal/model"
)

// ExecutionModel selects how close transactions are driven.
type ExecutionModel int

const (
	// Atomic bundles remove-liquidity, fee-collect and position-burn into a
	// single multicall transaction.
	Atomic ExecutionModel = iota
	// Sequential sends 1..k dependent transactions strictly in order; later
	// transactions assume state mutated by earlier ones.
	Sequential
)

// PoolStateReader exposes the fee-accumulator state of a pool. Each method
// is a single fallible read; the engine wraps them in retry individually.
type PoolStateReader interface {
	// FeeGrowthGlobal returns the Q128 global accumulator for token index 0 or 1.
	FeeGrowthGlobal(ctx context.Context, pool string, tokenIndex int) (*uint256.Int, error)
	// CurrentTick returns the pool's current tick.
	CurrentTick(ctx context.Context, pool string) (int32, error)
	// TickOutside returns the Q128 outside accumulators recorded at a tick
	// boundary, for both tokens.
	TickOutside(ctx context.Context, pool string, tick int32) (outside0, outside1 *uint256.Int, err error)
}

// PositionReader resolves positions and their ownership.
type PositionReader interface {
	// Position fetches a snapshot. Burned or invalid position ids fail with
	// a NotFound kind.
	Position(ctx context.Context, positionID string) (*model.PositionSnapshot, error)
	// OwnerOf returns the owner address of a position.
	OwnerOf(ctx context.Context, positionID string) (string, error)
	// PositionIDs lists position ids held by owner, at most limit entries.
	PositionIDs(ctx context.Context, owner string, limit int) ([]string, error)
}

// TokenRegistry resolves token metadata by address.
type TokenRegistry interface {
	Resolve(ctx context.Context, address string) (model.TokenRef, error)
}

// AmountEstimator computes the token amounts a position's liquidity would
// withdraw to at current pool price. Provided by the AMM-math layer.
type AmountEstimator interface {
	AmountsForLiquidity(ctx context.Context, snap *model.PositionSnapshot) (amount0, amount1 *big.Int, err error)
}

// Tx is an opaque chain-specific transaction prepared by a TxPlanner. The
// engine only orders, simulates and submits it.
type Tx interface {
	Label() string
}

// ClosePlan is the ordered set of transactions that fully withdraws a
// position, plus what the planner already knows about the close.
type ClosePlan struct {
	Txs []Tx
	// ExpectedRentRefund is the account deposit returned when the position
	// account closes. Zero on chains without rent.
	ExpectedRentRefund *big.Int
}

// TxPlanner builds the close transaction(s) for a position with the given
// slippage-bounded minimum amounts.
type TxPlanner interface {
	PlanClose(ctx context.Context, snap *model.PositionSnapshot, owner string, amount0Min, amount1Min *big.Int) (*ClosePlan, error)
}

// Receipt is the observed outcome of a submitted transaction.
type Receipt struct {
	Success bool
	Fee     *big.Int
}

// TxSubmitter drives prepared transactions through the chain.
type TxSubmitter interface {
	// Simulate pre-flights a transaction without sending it.
	Simulate(ctx context.Context, tx Tx) error
	// Send signs and broadcasts, returning the signature and the fee paid
	// (best known at send time; may be refined by Confirm).
	Send(ctx context.Context, tx Tx) (signature string, fee *big.Int, err error)
	// Confirm looks the transaction up by signature. A nil receipt with nil
	// error means the transaction was not observed yet.
	Confirm(ctx context.Context, signature string) (*Receipt, error)
	// NativeBalance returns the owner's native-asset balance.
	NativeBalance(ctx context.Context, account string) (*big.Int, error)
	// TokenBalance returns the owner's balance of a token.
	TokenBalance(ctx context.Context, account, token string) (*big.Int, error)
}

// Backend bundles everything the engine needs for one network.
type Backend struct {
	Network             string
	WrappedNativeSymbol string
	Model               ExecutionModel

	State     PoolStateReader
	Positions PositionReader
	Tokens    TokenRegistry
	Estimator AmountEstimator
	Planner   TxPlanner
	Submitter TxSubmitter
}
