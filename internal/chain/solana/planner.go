package solana

import (
	"context"
	"fmt"
	"math/big"

	"clmmgate/internal/model"
	"clmmgate/internal/position"
)

// TxBuilder assembles and signs the program instructions for one close
// step, returning the transaction base64-encoded and ready to submit.
// Instruction layout is program-specific; the planner only orders steps.
type TxBuilder interface {
	BuildDecreaseLiquidity(ctx context.Context, snap *model.PositionSnapshot, owner string, amount0Min, amount1Min *big.Int) (string, error)
	BuildCollectFees(ctx context.Context, snap *model.PositionSnapshot, owner string) (string, error)
	BuildClosePosition(ctx context.Context, snap *model.PositionSnapshot, owner string) (string, error)
}

// solTx is one prepared close step.
type solTx struct {
	label   string
	encoded string
}

func (t *solTx) Label() string { return t.label }

// Planner builds the ordered close sequence: withdraw liquidity, collect
// fees, then close the position account. Later steps read state the
// earlier ones mutate, so order is fixed.
type Planner struct {
	client  *Client
	builder TxBuilder
}

func NewPlanner(client *Client, builder TxBuilder) *Planner {
	return &Planner{client: client, builder: builder}
}

func (p *Planner) PlanClose(ctx context.Context, snap *model.PositionSnapshot, owner string, amount0Min, amount1Min *big.Int) (*position.ClosePlan, error) {
	var txs []position.Tx

	if snap.Liquidity != nil && snap.Liquidity.Sign() > 0 {
		encoded, err := p.builder.BuildDecreaseLiquidity(ctx, snap, owner, amount0Min, amount1Min)
		if err != nil {
			return nil, fmt.Errorf("build decrease-liquidity: %w", err)
		}
		txs = append(txs, &solTx{label: "decrease-liquidity", encoded: encoded})
	}

	collect, err := p.builder.BuildCollectFees(ctx, snap, owner)
	if err != nil {
		return nil, fmt.Errorf("build collect-fees: %w", err)
	}
	txs = append(txs, &solTx{label: "collect-fees", encoded: collect})

	closeTx, err := p.builder.BuildClosePosition(ctx, snap, owner)
	if err != nil {
		return nil, fmt.Errorf("build close-position: %w", err)
	}
	txs = append(txs, &solTx{label: "close-position", encoded: closeTx})

	rent, err := p.positionRent(ctx, snap.ID)
	if err != nil {
		return nil, err
	}

	return &position.ClosePlan{Txs: txs, ExpectedRentRefund: rent}, nil
}

// positionRent reads the lamports held by the position account; closing
// the account refunds them to the owner.
func (p *Planner) positionRent(ctx context.Context, positionID string) (*big.Int, error) {
	info, err := p.client.GetAccountInfo(ctx, positionID)
	if err != nil {
		return nil, fmt.Errorf("read position rent: %w", err)
	}
	if info == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).SetUint64(info.Lamports), nil
}
