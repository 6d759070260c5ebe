package chain

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
	"time"

	"golang.org/x/crypto/sha3"
)

const defaultSignerAddress = "0x00000000000000000000000000000000d1a1e000"

type entryKey struct {
	schema string
	owner  string
	key    string
}

// SimChain is a concurrency-safe in-process implementation of both Store and
// Ledger. It backs unit tests and standalone deployments without a node.
type SimChain struct {
	mu sync.RWMutex

	signer   string
	nonce    uint64
	block    uint64
	balances map[string]*big.Int

	schemas map[string]bool
	entries map[entryKey][]Entry
	order   []entryKey

	receipts map[string]Receipt
	logs     []Log

	revertNext     bool
	pendingWait    time.Duration
	nonceConflicts int
}

// NewSim creates an empty simulated chain. The engine signs as signer; pass
// "" for a fixed default address.
func NewSim(signer string) *SimChain {
	if signer == "" {
		signer = defaultSignerAddress
	}
	return &SimChain{
		signer:   signer,
		balances: make(map[string]*big.Int),
		schemas:  make(map[string]bool),
		entries:  make(map[entryKey][]Entry),
		receipts: make(map[string]Receipt),
	}
}

// Signer returns the address transfers and events are submitted from.
func (s *SimChain) Signer() string { return s.signer }

// ProvisionSchema registers a schema so entries can be written and scanned
// under it. Unprovisioned schemas reproduce the remote service's
// schema-not-found behavior.
func (s *SimChain) ProvisionSchema(schemaID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemas[schemaID] = true
}

func (s *SimChain) GetByKey(_ context.Context, schemaID, owner, key string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := s.entries[entryKey{schema: schemaID, owner: owner, key: key}]
	out := make([]Entry, len(found))
	copy(out, found)
	return out, nil
}

func (s *SimChain) GetAllForOwner(_ context.Context, schemaID, owner string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.schemas[schemaID] {
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, schemaID)
	}
	var out []Entry
	for _, k := range s.order {
		if k.schema == schemaID && k.owner == owner {
			out = append(out, s.entries[k]...)
		}
	}
	return out, nil
}

// SetEntry writes under the engine's own signer scope. Writing the same key
// twice is a no-op, matching the append-only store's collision semantics.
func (s *SimChain) SetEntry(_ context.Context, schemaID, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.schemas[schemaID] {
		return fmt.Errorf("%w: %s", ErrSchemaNotFound, schemaID)
	}
	k := entryKey{schema: schemaID, owner: s.signer, key: key}
	if _, exists := s.entries[k]; exists {
		return nil
	}
	s.entries[k] = []Entry{{Kind: EntryRawEncoded, Key: key, Owner: s.signer, Payload: payload}}
	s.order = append(s.order, k)
	return nil
}

func (s *SimChain) SubmitTransfer(_ context.Context, to string, amount *big.Int) (string, error) {
	if amount == nil || amount.Sign() <= 0 {
		return "", fmt.Errorf("amount must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txID := s.nextTxID([]byte(to))
	s.block++

	if s.revertNext {
		s.revertNext = false
		s.receipts[txID] = Receipt{TxID: txID, Reverted: true, BlockNumber: s.block}
		return txID, nil
	}

	bal := s.balance(to)
	bal.Add(bal, amount)
	s.receipts[txID] = Receipt{TxID: txID, BlockNumber: s.block}
	return txID, nil
}

func (s *SimChain) WaitForConfirmation(ctx context.Context, txID string, timeout time.Duration) (Receipt, error) {
	if wait := s.confirmationDelay(); wait > 0 {
		if wait > timeout {
			return Receipt{}, fmt.Errorf("%w: no receipt for %s after %s", ErrConfirmationTimeout, txID, timeout)
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	receipt, ok := s.receipts[txID]
	if !ok {
		return Receipt{}, fmt.Errorf("%w: no receipt for %s after %s", ErrConfirmationTimeout, txID, timeout)
	}
	return receipt, nil
}

func (s *SimChain) EmitEvent(_ context.Context, topics []string, payload []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nonceConflicts > 0 {
		s.nonceConflicts--
		return "", fmt.Errorf("%w: pending transaction from %s", ErrNonceConflict, s.signer)
	}

	txID := s.nextTxID(payload)
	s.block++
	s.logs = append(s.logs, Log{
		TxID:        txID,
		Topics:      append([]string(nil), topics...),
		Data:        append([]byte(nil), payload...),
		BlockNumber: s.block,
		Timestamp:   time.Now().UTC(),
	})
	s.receipts[txID] = Receipt{TxID: txID, BlockNumber: s.block}
	return txID, nil
}

func (s *SimChain) GetLogs(_ context.Context, topic0, indexed string) ([]Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Log
	for _, l := range s.logs {
		if len(l.Topics) == 0 || l.Topics[0] != topic0 {
			continue
		}
		if indexed != "" && !topicMatch(l.Topics[1:], indexed) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *SimChain) PendingNonce(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nonce, nil
}

// Balance returns the simulated native balance for an address.
func (s *SimChain) Balance(addr string) *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.balance(addr))
}

func (s *SimChain) balance(addr string) *big.Int {
	bal, ok := s.balances[addr]
	if !ok {
		bal = new(big.Int)
		s.balances[addr] = bal
	}
	return bal
}

func (s *SimChain) confirmationDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.pendingWait
	s.pendingWait = 0
	return d
}

func (s *SimChain) nextTxID(seed []byte) string {
	s.nonce++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], s.nonce)
	sum := sha3.Sum256(append(buf[:], seed...))
	return "0x" + hex.EncodeToString(sum[:])
}

func topicMatch(topics []string, want string) bool {
	for _, t := range topics {
		if t == want {
			return true
		}
	}
	return false
}
