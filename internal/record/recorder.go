package record

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dialpay/dial_pay/internal/chain"
)

// Recorder persists confirmed transfers into the keyed store. A failed write
// is a soft condition: the value already moved on the ledger, so callers log
// the error and still report the transfer as successful.
type Recorder struct {
	store    chain.Store
	schemaID string
	logger   *slog.Logger
}

// NewRecorder builds a recorder writing under the transfer-history schema.
func NewRecorder(store chain.Store, schemaID string, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, schemaID: schemaID, logger: logger}
}

// Record writes the transfer keyed by its transaction id. Writing the same
// transaction id twice collides on the key and is a no-op, which makes
// recording naturally idempotent across retries.
func (r *Recorder) Record(ctx context.Context, rec Record) error {
	if rec.TxID == "" {
		return fmt.Errorf("record transfer: missing transaction id")
	}

	if err := r.store.SetEntry(ctx, r.schemaID, rec.TxID, Encode(rec)); err != nil {
		r.logger.Warn("transfer record write failed",
			"tx_id", rec.TxID, "schema", r.schemaID, "error", err)
		return fmt.Errorf("record transfer %s: %w", rec.TxID, err)
	}

	r.logger.Info("transfer recorded", "tx_id", rec.TxID)
	return nil
}
