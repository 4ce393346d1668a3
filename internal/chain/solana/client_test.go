package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func rpcServer(t *testing.T, handler func(req rpcRequest) interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  handler(req),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestClient_GetAccountInfo(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4})
	server := rpcServer(t, func(req rpcRequest) interface{} {
		if req.Method != "getAccountInfo" {
			t.Errorf("expected method getAccountInfo, got %s", req.Method)
		}
		return map[string]interface{}{
			"value": map[string]interface{}{
				"lamports": 2039280,
				"owner":    "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
				"data":     []string{data, "base64"},
			},
		}
	})
	defer server.Close()

	client := NewClient(server.URL)
	info, err := client.GetAccountInfo(context.Background(), "somepubkey")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if info == nil {
		t.Fatal("expected account, got nil")
	}
	if info.Lamports != 2039280 {
		t.Errorf("expected 2039280 lamports, got %d", info.Lamports)
	}
	if len(info.Data) != 4 || info.Data[0] != 1 {
		t.Errorf("unexpected data %v", info.Data)
	}
}

func TestClient_GetAccountInfo_Missing(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		return map[string]interface{}{"value": nil}
	})
	defer server.Close()

	client := NewClient(server.URL)
	info, err := client.GetAccountInfo(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if info != nil {
		t.Fatalf("expected nil for missing account, got %+v", info)
	}
}

func TestClient_GetTransaction_NotObserved(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		return nil
	})
	defer server.Close()

	client := NewClient(server.URL)
	status, err := client.GetTransaction(context.Background(), "sig")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if status != nil {
		t.Fatalf("expected nil status, got %+v", status)
	}
}

func TestClient_GetTransaction_Failed(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		return map[string]interface{}{
			"slot": 100,
			"meta": map[string]interface{}{
				"err": map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
				"fee": 5000,
			},
		}
	})
	defer server.Close()

	client := NewClient(server.URL)
	status, err := client.GetTransaction(context.Background(), "sig")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if status == nil {
		t.Fatal("expected status, got nil")
	}
	if status.Err == nil {
		t.Error("expected transaction error to be set")
	}
	if status.Fee != 5000 {
		t.Errorf("expected fee 5000, got %d", status.Fee)
	}
}

func TestClient_SimulateTransaction_Failure(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		if req.Method != "simulateTransaction" {
			t.Errorf("expected method simulateTransaction, got %s", req.Method)
		}
		return map[string]interface{}{
			"value": map[string]interface{}{
				"err":  "InsufficientFundsForFee",
				"logs": []string{"Program log: boom"},
			},
		}
	})
	defer server.Close()

	client := NewClient(server.URL)
	if err := client.SimulateTransaction(context.Background(), "dHg="); err == nil {
		t.Fatal("expected simulation error")
	}
}

func TestClient_SendTransaction(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		if req.Method != "sendTransaction" {
			t.Errorf("expected method sendTransaction, got %s", req.Method)
		}
		return "5igSig"
	})
	defer server.Close()

	client := NewClient(server.URL)
	sig, err := client.SendTransaction(context.Background(), "dHg=")
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if sig != "5igSig" {
		t.Errorf("expected signature 5igSig, got %s", sig)
	}
}

func TestClient_RateLimitSurfacesError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.GetBalance(context.Background(), "acct"); err == nil {
		t.Fatal("expected rate-limit error")
	} else if !strings.Contains(err.Error(), "429") {
		t.Errorf("expected 429 in error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("client retried on its own: %d calls", calls.Load())
	}
}

func TestClient_SingleAttemptPerCall(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": -32602, "message": "invalid params"},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.GetBalance(context.Background(), "acct"); err == nil {
		t.Fatal("expected RPC error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 call, got %d", calls.Load())
	}
}
