package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

const receiptPollInterval = 2 * time.Second

// RPCClient talks JSON-RPC to a node exposing both the keyed data service
// and the settlement ledger. All submissions sign as the configured signer
// account on the node side.
type RPCClient struct {
	url    string
	signer string
	http   *http.Client
	nextID atomic.Uint64
}

// NewRPCClient builds a client for the node endpoint.
func NewRPCClient(url, signer string) *RPCClient {
	return &RPCClient{
		url:    url,
		signer: signer,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *RPCClient) call(ctx context.Context, method string, params, result any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: http %d: %s", method, resp.StatusCode, raw)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if decoded.Error != nil {
		return classifyRPCError(method, decoded.Error)
	}
	if result != nil {
		if err := json.Unmarshal(decoded.Result, result); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

// classifyRPCError maps node error messages onto the engine's error
// taxonomy. Sequence-number collisions surface with "nonce" in the message;
// unprovisioned schemas report "schema".
func classifyRPCError(method string, e *rpcError) error {
	msg := strings.ToLower(e.Message)
	switch {
	case strings.Contains(msg, "nonce"):
		return fmt.Errorf("%s: %w: %s", method, ErrNonceConflict, e.Message)
	case strings.Contains(msg, "schema"):
		return fmt.Errorf("%s: %w: %s", method, ErrSchemaNotFound, e.Message)
	default:
		return fmt.Errorf("%s: rpc error %d: %s", method, e.Code, e.Message)
	}
}

type wireEntry struct {
	Kind    int    `json:"kind"`
	Key     string `json:"key"`
	Owner   string `json:"owner"`
	Payload string `json:"payload"`
}

func (w wireEntry) entry() (Entry, error) {
	payload, err := hex.DecodeString(strings.TrimPrefix(w.Payload, "0x"))
	if err != nil {
		return Entry{}, fmt.Errorf("decode entry payload: %w", err)
	}
	return Entry{Kind: EntryKind(w.Kind), Key: w.Key, Owner: w.Owner, Payload: payload}, nil
}

func (c *RPCClient) GetByKey(ctx context.Context, schemaID, owner, key string) ([]Entry, error) {
	var raw []wireEntry
	err := c.call(ctx, "dialpay_getByKey", map[string]string{
		"schema": schemaID, "owner": owner, "key": key,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeWireEntries(raw)
}

func (c *RPCClient) GetAllForOwner(ctx context.Context, schemaID, owner string) ([]Entry, error) {
	var raw []wireEntry
	err := c.call(ctx, "dialpay_getAllForOwner", map[string]string{
		"schema": schemaID, "owner": owner,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeWireEntries(raw)
}

func (c *RPCClient) SetEntry(ctx context.Context, schemaID, key string, payload []byte) error {
	return c.call(ctx, "dialpay_setEntry", map[string]string{
		"schema":  schemaID,
		"key":     key,
		"payload": "0x" + hex.EncodeToString(payload),
	}, nil)
}

func (c *RPCClient) SubmitTransfer(ctx context.Context, to string, amount *big.Int) (string, error) {
	if amount == nil || amount.Sign() <= 0 {
		return "", fmt.Errorf("amount must be positive")
	}
	var txID string
	err := c.call(ctx, "dialpay_submitTransfer", map[string]string{
		"from": c.signer, "to": to, "amount": amount.String(),
	}, &txID)
	return txID, err
}

type wireReceipt struct {
	TxID        string `json:"tx_id"`
	Reverted    bool   `json:"reverted"`
	BlockNumber uint64 `json:"block_number"`
	Pending     bool   `json:"pending"`
}

func (c *RPCClient) WaitForConfirmation(ctx context.Context, txID string, timeout time.Duration) (Receipt, error) {
	deadline := time.Now().Add(timeout)
	for {
		var receipt wireReceipt
		err := c.call(ctx, "dialpay_getReceipt", map[string]string{"tx_id": txID}, &receipt)
		if err == nil && !receipt.Pending {
			return Receipt{TxID: receipt.TxID, Reverted: receipt.Reverted, BlockNumber: receipt.BlockNumber}, nil
		}
		if err != nil && ctx.Err() != nil {
			return Receipt{}, ctx.Err()
		}

		if time.Now().After(deadline) {
			return Receipt{}, fmt.Errorf("%w: no receipt for %s after %s", ErrConfirmationTimeout, txID, timeout)
		}
		select {
		case <-time.After(receiptPollInterval):
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		}
	}
}

func (c *RPCClient) EmitEvent(ctx context.Context, topics []string, payload []byte) (string, error) {
	var txID string
	err := c.call(ctx, "dialpay_emitEvent", map[string]any{
		"from":    c.signer,
		"topics":  topics,
		"payload": "0x" + hex.EncodeToString(payload),
	}, &txID)
	return txID, err
}

type wireLog struct {
	TxID        string   `json:"tx_id"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	BlockNumber uint64   `json:"block_number"`
	Timestamp   int64    `json:"timestamp"`
}

func (c *RPCClient) GetLogs(ctx context.Context, topic0, indexed string) ([]Log, error) {
	var raw []wireLog
	err := c.call(ctx, "dialpay_getLogs", map[string]string{
		"topic0": topic0, "indexed": indexed,
	}, &raw)
	if err != nil {
		return nil, err
	}
	out := make([]Log, 0, len(raw))
	for _, l := range raw {
		data, err := hex.DecodeString(strings.TrimPrefix(l.Data, "0x"))
		if err != nil {
			return nil, fmt.Errorf("decode log data: %w", err)
		}
		out = append(out, Log{
			TxID:        l.TxID,
			Topics:      l.Topics,
			Data:        data,
			BlockNumber: l.BlockNumber,
			Timestamp:   time.Unix(l.Timestamp, 0).UTC(),
		})
	}
	return out, nil
}

func (c *RPCClient) PendingNonce(ctx context.Context) (uint64, error) {
	var nonce uint64
	err := c.call(ctx, "dialpay_pendingNonce", map[string]string{"address": c.signer}, &nonce)
	return nonce, err
}

func decodeWireEntries(raw []wireEntry) ([]Entry, error) {
	out := make([]Entry, 0, len(raw))
	for _, w := range raw {
		e, err := w.entry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
