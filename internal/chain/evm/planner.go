package evm

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"clmmgate/internal/model"
	"clmmgate/internal/position"
)

// closeDeadline bounds how long a planned close stays valid in the mempool.
const closeDeadline = 10 * time.Minute

// maxUint128 asks collect for everything owed.
var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// evmTx is a prepared call against the position manager.
type evmTx struct {
	label string
	to    common.Address
	data  []byte
	value *big.Int
}

func (t *evmTx) Label() string { return t.label }

// Planner builds the single multicall that decreases all liquidity, collects
// owed tokens and burns the position NFT atomically.
type Planner struct {
	cfg Config
}

func NewPlanner(cfg Config) (*Planner, error) {
	if err := loadABIs(); err != nil {
		return nil, fmt.Errorf("parse abis: %w", err)
	}
	return &Planner{cfg: cfg}, nil
}

type decreaseLiquidityParams struct {
	TokenId    *big.Int
	Liquidity  *big.Int
	Amount0Min *big.Int
	Amount1Min *big.Int
	Deadline   *big.Int
}

type collectParams struct {
	TokenId    *big.Int
	Recipient  common.Address
	Amount0Max *big.Int
	Amount1Max *big.Int
}

func (p *Planner) PlanClose(ctx context.Context, snap *model.PositionSnapshot, owner string, amount0Min, amount1Min *big.Int) (*position.ClosePlan, error) {
	tokenID, err := parseTokenID(snap.ID)
	if err != nil {
		return nil, err
	}
	deadline := big.NewInt(time.Now().Add(closeDeadline).Unix())

	decrease, err := positionManagerABI.Pack("decreaseLiquidity", decreaseLiquidityParams{
		TokenId:    tokenID,
		Liquidity:  snap.Liquidity,
		Amount0Min: amount0Min,
		Amount1Min: amount1Min,
		Deadline:   deadline,
	})
	if err != nil {
		return nil, fmt.Errorf("pack decreaseLiquidity: %w", err)
	}

	collect, err := positionManagerABI.Pack("collect", collectParams{
		TokenId:    tokenID,
		Recipient:  common.HexToAddress(owner),
		Amount0Max: maxUint128,
		Amount1Max: maxUint128,
	})
	if err != nil {
		return nil, fmt.Errorf("pack collect: %w", err)
	}

	burn, err := positionManagerABI.Pack("burn", tokenID)
	if err != nil {
		return nil, fmt.Errorf("pack burn: %w", err)
	}

	data, err := positionManagerABI.Pack("multicall", [][]byte{decrease, collect, burn})
	if err != nil {
		return nil, fmt.Errorf("pack multicall: %w", err)
	}

	return &position.ClosePlan{
		Txs: []position.Tx{&evmTx{
			label: "close-multicall",
			to:    p.cfg.PositionManager,
			data:  data,
			value: big.NewInt(0),
		}},
		ExpectedRentRefund: big.NewInt(0),
	}, nil
}
