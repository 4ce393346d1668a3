// Package solana implements the gateway's chain adapter for Solana CLMM
// pools: account-layout reads over JSON-RPC and the ordered multi-step
// close path.
package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

const DefaultTimeout = 30 * time.Second

// Client talks JSON-RPC 2.0 over HTTP to a Solana node. It performs a
// single attempt per call; callers own retry policy.
type Client struct {
	endpoint  string
	client    *http.Client
	requestID atomic.Uint64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a new Solana RPC HTTP client.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs one JSON-RPC call. No retrying here: the position
// engine's retry policy wraps every chain read, and stacking another
// backoff loop underneath it would multiply attempts.
func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}

// AccountInfo is one fetched account: its lamport balance, owning program
// and raw data.
type AccountInfo struct {
	Lamports uint64
	Owner    string
	Data     []byte
}

type getAccountInfoResult struct {
	Value *getAccountInfoValue `json:"value"`
}

type getAccountInfoValue struct {
	Lamports uint64   `json:"lamports"`
	Owner    string   `json:"owner"`
	Data     []string `json:"data"` // [base64_data, encoding]
}

// GetAccountInfo fetches an account with base64-encoded data. A nil info
// with nil error means the account does not exist.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error) {
	params := []interface{}{
		pubkey,
		map[string]interface{}{"encoding": "base64"},
	}

	var result getAccountInfoResult
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, nil
	}

	info := &AccountInfo{
		Lamports: result.Value.Lamports,
		Owner:    result.Value.Owner,
	}
	if len(result.Value.Data) >= 1 {
		data, err := base64.StdEncoding.DecodeString(result.Value.Data[0])
		if err != nil {
			return nil, fmt.Errorf("decode account data: %w", err)
		}
		info.Data = data
	}
	return info, nil
}

// GetBalance returns an account's lamport balance.
func (c *Client) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []interface{}{pubkey}, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// TokenAccount is one parsed SPL token account of an owner.
type TokenAccount struct {
	Pubkey   string
	Mint     string
	Amount   string
	Decimals uint8
}

type tokenAccountsResult struct {
	Value []struct {
		Pubkey  string `json:"pubkey"`
		Account struct {
			Data struct {
				Parsed struct {
					Info struct {
						Mint        string `json:"mint"`
						TokenAmount struct {
							Amount   string `json:"amount"`
							Decimals uint8  `json:"decimals"`
						} `json:"tokenAmount"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"account"`
	} `json:"value"`
}

// splTokenProgram is the SPL token program id.
const splTokenProgram = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

// GetTokenAccountsByOwner lists the owner's token accounts, optionally
// filtered to one mint.
func (c *Client) GetTokenAccountsByOwner(ctx context.Context, owner, mint string) ([]TokenAccount, error) {
	filter := map[string]interface{}{"programId": splTokenProgram}
	if mint != "" {
		filter = map[string]interface{}{"mint": mint}
	}
	params := []interface{}{
		owner,
		filter,
		map[string]interface{}{"encoding": "jsonParsed"},
	}

	var result tokenAccountsResult
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return nil, err
	}

	accounts := make([]TokenAccount, 0, len(result.Value))
	for _, v := range result.Value {
		accounts = append(accounts, TokenAccount{
			Pubkey:   v.Pubkey,
			Mint:     v.Account.Data.Parsed.Info.Mint,
			Amount:   v.Account.Data.Parsed.Info.TokenAmount.Amount,
			Decimals: v.Account.Data.Parsed.Info.TokenAmount.Decimals,
		})
	}
	return accounts, nil
}

// GetTokenSupply returns a mint's decimals.
func (c *Client) GetTokenSupply(ctx context.Context, mint string) (uint8, error) {
	var result struct {
		Value struct {
			Decimals uint8 `json:"decimals"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getTokenSupply", []interface{}{mint}, &result); err != nil {
		return 0, err
	}
	return result.Value.Decimals, nil
}

// GetTokenLargestAccounts returns the token account addresses holding the
// mint, largest first.
func (c *Client) GetTokenLargestAccounts(ctx context.Context, mint string) ([]string, error) {
	var result struct {
		Value []struct {
			Address string `json:"address"`
			Amount  string `json:"amount"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getTokenLargestAccounts", []interface{}{mint}, &result); err != nil {
		return nil, err
	}
	addresses := make([]string, 0, len(result.Value))
	for _, v := range result.Value {
		if v.Amount == "0" {
			continue
		}
		addresses = append(addresses, v.Address)
	}
	return addresses, nil
}

// SimulateTransaction pre-flights a base64-encoded signed transaction.
func (c *Client) SimulateTransaction(ctx context.Context, encodedTx string) error {
	params := []interface{}{
		encodedTx,
		map[string]interface{}{
			"encoding":               "base64",
			"replaceRecentBlockhash": true,
		},
	}

	var result struct {
		Value struct {
			Err  interface{} `json:"err"`
			Logs []string    `json:"logs"`
		} `json:"value"`
	}
	if err := c.call(ctx, "simulateTransaction", params, &result); err != nil {
		return err
	}
	if result.Value.Err != nil {
		return fmt.Errorf("simulation failed: %v (logs: %v)", result.Value.Err, tailLogs(result.Value.Logs))
	}
	return nil
}

// tailLogs keeps the last few program logs; the failure reason is at the end.
func tailLogs(logs []string) []string {
	const keep = 5
	if len(logs) > keep {
		return logs[len(logs)-keep:]
	}
	return logs
}

// SendTransaction broadcasts a base64-encoded signed transaction and
// returns its signature.
func (c *Client) SendTransaction(ctx context.Context, encodedTx string) (string, error) {
	params := []interface{}{
		encodedTx,
		map[string]interface{}{
			"encoding":      "base64",
			"skipPreflight": true,
		},
	}

	var signature string
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	return signature, nil
}

// TransactionStatus is the observed outcome of a confirmed transaction.
type TransactionStatus struct {
	Err interface{}
	Fee uint64
}

type getTransactionResult struct {
	Slot int64 `json:"slot"`
	Meta *struct {
		Err interface{} `json:"err"`
		Fee uint64      `json:"fee"`
	} `json:"meta"`
}

// GetTransaction looks a transaction up by signature. A nil status with
// nil error means it was not observed yet.
func (c *Client) GetTransaction(ctx context.Context, signature string) (*TransactionStatus, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "json",
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result getTransactionResult
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}
	if result.Meta == nil {
		return nil, nil
	}
	return &TransactionStatus{Err: result.Meta.Err, Fee: result.Meta.Fee}, nil
}
