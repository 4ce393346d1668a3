package model

import "math/big"

// TxStatus is the confirmation state of a submitted close.
type TxStatus string

const (
	// StatusPending means the transaction was sent but its inclusion could
	// not be observed yet. Not an error; the caller may poll by signature.
	StatusPending TxStatus = "pending"
	// StatusConfirmed means the transaction was observed on chain.
	StatusConfirmed TxStatus = "confirmed"
)

// CloseResult is the terminal output of a successful close state-machine
// run. All amounts are raw token units keyed to the base/quote orientation
// of the pool pair.
type CloseResult struct {
	Network   string
	Signature string
	Status    TxStatus

	// Fee is the total transaction fee paid across all sent transactions,
	// in the chain's native unit.
	Fee *big.Int

	// PositionRentRefunded is the account deposit returned when the
	// position account was closed. Zero on chains without rent.
	PositionRentRefunded *big.Int

	BaseTokenAmountRemoved  *big.Int
	QuoteTokenAmountRemoved *big.Int
	BaseFeeAmountCollected  *big.Int
	QuoteFeeAmountCollected *big.Int
}
