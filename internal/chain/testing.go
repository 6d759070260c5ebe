package chain

import (
	"math/big"
	"time"
)

// SeedEntry is a test helper that plants an entry under an arbitrary owner and
// wire shape, bypassing the engine's own SetEntry scope.
func SeedEntry(s *SimChain, schemaID, owner, key string, kind EntryKind, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemas[schemaID] = true
	k := entryKey{schema: schemaID, owner: owner, key: key}
	s.entries[k] = append(s.entries[k], Entry{Kind: kind, Key: key, Owner: owner, Payload: payload})
	s.order = append(s.order, k)
}

// SeedBalance sets the simulated native balance for an address.
func SeedBalance(s *SimChain, addr string, amount *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[addr] = new(big.Int).Set(amount)
}

// RevertNextTransfer makes the next SubmitTransfer confirm as reverted.
func RevertNextTransfer(s *SimChain) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revertNext = true
}

// DelayConfirmation makes the next WaitForConfirmation observe the receipt
// only after d has elapsed, timing out if d exceeds the caller's bound.
func DelayConfirmation(s *SimChain, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingWait = d
}

// ScriptNonceConflicts makes the next n EmitEvent calls fail with
// ErrNonceConflict before succeeding.
func ScriptNonceConflicts(s *SimChain, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonceConflicts = n
}
