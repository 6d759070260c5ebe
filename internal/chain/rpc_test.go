package chain

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type stubNode struct {
	t       *testing.T
	handler func(method string, params json.RawMessage) (any, *rpcError)
}

func (n *stubNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		n.t.Errorf("bad request body: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	result, rpcErr := n.handler(req.Method, req.Params)
	resp := map[string]any{"jsonrpc": "2.0"}
	if rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	json.NewEncoder(w).Encode(resp)
}

func newStub(t *testing.T, handler func(method string, params json.RawMessage) (any, *rpcError)) *RPCClient {
	t.Helper()
	srv := httptest.NewServer(&stubNode{t: t, handler: handler})
	t.Cleanup(srv.Close)
	return NewRPCClient(srv.URL, "0xSigner")
}

func TestRPCSubmitTransferAndReceipt(t *testing.T) {
	client := newStub(t, func(method string, params json.RawMessage) (any, *rpcError) {
		switch method {
		case "dialpay_submitTransfer":
			var p map[string]string
			json.Unmarshal(params, &p)
			if p["from"] != "0xSigner" || p["amount"] != "1500" {
				t.Errorf("unexpected params: %v", p)
			}
			return "0xtx1", nil
		case "dialpay_getReceipt":
			return wireReceipt{TxID: "0xtx1", BlockNumber: 42}, nil
		default:
			t.Errorf("unexpected method %s", method)
			return nil, &rpcError{Code: -1, Message: "unexpected"}
		}
	})

	ctx := context.Background()
	txID, err := client.SubmitTransfer(ctx, "0xAAA", big.NewInt(1500))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	receipt, err := client.WaitForConfirmation(ctx, txID, time.Second)
	if err != nil {
		t.Fatalf("confirmation failed: %v", err)
	}
	if receipt.Reverted || receipt.BlockNumber != 42 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
}

func TestRPCErrorClassification(t *testing.T) {
	client := newStub(t, func(method string, _ json.RawMessage) (any, *rpcError) {
		switch method {
		case "dialpay_emitEvent":
			return nil, &rpcError{Code: -32000, Message: "nonce too low"}
		case "dialpay_getAllForOwner":
			return nil, &rpcError{Code: -32001, Message: "schema not registered"}
		default:
			return nil, &rpcError{Code: -1, Message: "boom"}
		}
	})

	ctx := context.Background()
	if _, err := client.EmitEvent(ctx, []string{"0xt"}, nil); !errors.Is(err, ErrNonceConflict) {
		t.Fatalf("expected ErrNonceConflict, got %v", err)
	}
	if _, err := client.GetAllForOwner(ctx, "s", "o"); !errors.Is(err, ErrSchemaNotFound) {
		t.Fatalf("expected ErrSchemaNotFound, got %v", err)
	}
	if _, err := client.PendingNonce(ctx); err == nil {
		t.Fatal("expected generic rpc error")
	}
}

func TestRPCEntriesDecode(t *testing.T) {
	client := newStub(t, func(method string, _ json.RawMessage) (any, *rpcError) {
		if method != "dialpay_getByKey" {
			return nil, &rpcError{Code: -1, Message: "unexpected"}
		}
		return []wireEntry{{Kind: int(EntryRawEncoded), Key: "k", Owner: "0xO", Payload: "0x68692074686572"}}, nil
	})

	entries, err := client.GetByKey(context.Background(), "s", "0xO", "k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != EntryRawEncoded || string(entries[0].Payload) != "hi ther" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}
