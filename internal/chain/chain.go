package chain

import (
	"context"
	"errors"
	"math/big"
	"time"
)

var (
	// ErrSchemaNotFound indicates the requested schema has not been
	// provisioned on the data service.
	ErrSchemaNotFound = errors.New("schema not found")

	// ErrNonceConflict indicates a submission collided with another pending
	// transaction from the same signer. Safe to retry after the pending
	// transaction lands.
	ErrNonceConflict = errors.New("nonce conflict")

	// ErrConfirmationTimeout indicates no receipt was observed within the
	// confirmation window. The transaction may or may not have landed.
	ErrConfirmationTimeout = errors.New("confirmation timeout")
)

// EntryKind tags the wire shape of a stored entry.
type EntryKind int

const (
	// EntryStructured carries an already-decoded field map (JSON object).
	EntryStructured EntryKind = iota
	// EntryRawEncoded carries the packed binary payload as written.
	EntryRawEncoded
	// EntryWrapped carries the packed payload inside a JSON envelope with a
	// "data" field (hex string).
	EntryWrapped
)

// Entry is one record returned by the keyed data service. The service does
// not guarantee a single wire shape; consumers dispatch on Kind.
type Entry struct {
	Kind    EntryKind
	Key     string
	Owner   string
	Payload []byte
}

// Receipt describes the final state of a submitted transaction.
type Receipt struct {
	TxID        string
	Reverted    bool
	BlockNumber uint64
}

// Log is one raw historical event log.
type Log struct {
	TxID        string
	Topics      []string
	Data        []byte
	BlockNumber uint64
	Timestamp   time.Time
}

// Store is the keyed data service: append-only entries scoped by schema and
// publisher owner. Lookups must name the owner whose entries to search.
type Store interface {
	GetByKey(ctx context.Context, schemaID, owner, key string) ([]Entry, error)
	GetAllForOwner(ctx context.Context, schemaID, owner string) ([]Entry, error)
	SetEntry(ctx context.Context, schemaID, key string, payload []byte) error
}

// Ledger is the settlement side: native value transfers, event emission and
// historical log access, all from a single signing identity.
type Ledger interface {
	SubmitTransfer(ctx context.Context, to string, amount *big.Int) (string, error)
	WaitForConfirmation(ctx context.Context, txID string, timeout time.Duration) (Receipt, error)
	EmitEvent(ctx context.Context, topics []string, payload []byte) (string, error)
	GetLogs(ctx context.Context, topic0, indexed string) ([]Log, error)
	PendingNonce(ctx context.Context) (uint64, error)
}
