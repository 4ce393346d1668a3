package solana

import (
	"context"
	"fmt"
	"math/big"

	"clmmgate/internal/position"
)

// baseSignatureFee is the flat per-signature lamport fee, reported at send
// time until the confirmed fee replaces it.
const baseSignatureFee = 5000

// Submitter drives prepared transactions through a Solana cluster.
type Submitter struct {
	client *Client
}

func NewSubmitter(client *Client) *Submitter {
	return &Submitter{client: client}
}

// Simulate pre-flights the transaction against current cluster state.
func (s *Submitter) Simulate(ctx context.Context, tx position.Tx) error {
	prepared, err := asSolTx(tx)
	if err != nil {
		return err
	}
	if err := s.client.SimulateTransaction(ctx, prepared.encoded); err != nil {
		return fmt.Errorf("simulate %s: %w", prepared.label, err)
	}
	return nil
}

// Send broadcasts the transaction and returns its signature.
func (s *Submitter) Send(ctx context.Context, tx position.Tx) (string, *big.Int, error) {
	prepared, err := asSolTx(tx)
	if err != nil {
		return "", nil, err
	}
	signature, err := s.client.SendTransaction(ctx, prepared.encoded)
	if err != nil {
		return "", nil, fmt.Errorf("broadcast %s: %w", prepared.label, err)
	}
	return signature, big.NewInt(baseSignatureFee), nil
}

// Confirm looks the transaction up; nil receipt means not observed yet.
func (s *Submitter) Confirm(ctx context.Context, signature string) (*position.Receipt, error) {
	status, err := s.client.GetTransaction(ctx, signature)
	if err != nil {
		return nil, fmt.Errorf("fetch transaction %s: %w", signature, err)
	}
	if status == nil {
		return nil, nil
	}
	return &position.Receipt{
		Success: status.Err == nil,
		Fee:     new(big.Int).SetUint64(status.Fee),
	}, nil
}

func (s *Submitter) NativeBalance(ctx context.Context, account string) (*big.Int, error) {
	lamports, err := s.client.GetBalance(ctx, account)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(lamports), nil
}

// TokenBalance sums the owner's token accounts for the mint.
func (s *Submitter) TokenBalance(ctx context.Context, account, token string) (*big.Int, error) {
	accounts, err := s.client.GetTokenAccountsByOwner(ctx, account, token)
	if err != nil {
		return nil, err
	}
	total := new(big.Int)
	for _, acct := range accounts {
		amount, ok := new(big.Int).SetString(acct.Amount, 10)
		if !ok {
			return nil, fmt.Errorf("token account %s: malformed amount %q", acct.Pubkey, acct.Amount)
		}
		total.Add(total, amount)
	}
	return total, nil
}

func asSolTx(tx position.Tx) (*solTx, error) {
	prepared, ok := tx.(*solTx)
	if !ok {
		return nil, fmt.Errorf("unexpected transaction type %T", tx)
	}
	return prepared, nil
}
