package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"clmmgate/internal/position"
)

// TxSigner signs transactions for one account.
type TxSigner interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// PrivateKeySigner signs with an in-memory secp256k1 key.
type PrivateKeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewPrivateKeySigner(hexKey string) (*PrivateKeySigner, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &PrivateKeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

func (s *PrivateKeySigner) Address() common.Address { return s.address }

func (s *PrivateKeySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

// Submitter drives prepared transactions through an EVM chain.
type Submitter struct {
	client  *Client
	signer  TxSigner
	chainID *big.Int
}

func NewSubmitter(ctx context.Context, client *Client, signer TxSigner) (*Submitter, error) {
	if err := loadABIs(); err != nil {
		return nil, fmt.Errorf("parse abis: %w", err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	return &Submitter{client: client, signer: signer, chainID: chainID}, nil
}

func (s *Submitter) callMsg(tx *evmTx) ethereum.CallMsg {
	to := tx.to
	return ethereum.CallMsg{
		From:  s.signer.Address(),
		To:    &to,
		Data:  tx.data,
		Value: tx.value,
	}
}

// Simulate pre-flights the call as the signing account without sending.
func (s *Submitter) Simulate(ctx context.Context, tx position.Tx) error {
	prepared, err := asEVMTx(tx)
	if err != nil {
		return err
	}
	if _, err := s.client.CallContract(ctx, s.callMsg(prepared)); err != nil {
		return fmt.Errorf("simulate %s: %w", prepared.label, err)
	}
	return nil
}

// Send signs and broadcasts, returning the tx hash and the worst-case fee
// at the estimated gas limit.
func (s *Submitter) Send(ctx context.Context, tx position.Tx) (string, *big.Int, error) {
	prepared, err := asEVMTx(tx)
	if err != nil {
		return "", nil, err
	}

	nonce, err := s.client.PendingNonceAt(ctx, s.signer.Address())
	if err != nil {
		return "", nil, fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("suggest gas price: %w", err)
	}
	gasLimit, err := s.client.EstimateGas(ctx, s.callMsg(prepared))
	if err != nil {
		return "", nil, fmt.Errorf("estimate gas for %s: %w", prepared.label, err)
	}

	unsigned := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &prepared.to,
		Value:    prepared.value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     prepared.data,
	})
	signed, err := s.signer.SignTx(unsigned, s.chainID)
	if err != nil {
		return "", nil, fmt.Errorf("sign %s: %w", prepared.label, err)
	}
	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return "", nil, fmt.Errorf("broadcast %s: %w", prepared.label, err)
	}

	fee := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit))
	return signed.Hash().Hex(), fee, nil
}

// Confirm looks the transaction up; nil receipt means not mined yet.
func (s *Submitter) Confirm(ctx context.Context, signature string) (*position.Receipt, error) {
	receipt, err := s.client.TransactionReceipt(ctx, common.HexToHash(signature))
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch receipt %s: %w", signature, err)
	}

	var fee *big.Int
	if receipt.EffectiveGasPrice != nil {
		fee = new(big.Int).Mul(receipt.EffectiveGasPrice, new(big.Int).SetUint64(receipt.GasUsed))
	}
	return &position.Receipt{
		Success: receipt.Status == types.ReceiptStatusSuccessful,
		Fee:     fee,
	}, nil
}

func (s *Submitter) NativeBalance(ctx context.Context, account string) (*big.Int, error) {
	return s.client.BalanceAt(ctx, common.HexToAddress(account))
}

func (s *Submitter) TokenBalance(ctx context.Context, account, token string) (*big.Int, error) {
	values, err := contractCall(ctx, s.client, common.HexToAddress(token), erc20ABI, "balanceOf", common.HexToAddress(account))
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

func asEVMTx(tx position.Tx) (*evmTx, error) {
	prepared, ok := tx.(*evmTx)
	if !ok {
		return nil, fmt.Errorf("unexpected transaction type %T", tx)
	}
	return prepared, nil
}
