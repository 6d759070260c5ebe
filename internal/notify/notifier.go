package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dialpay/dial_pay/internal/chain"
	"github.com/dialpay/dial_pay/internal/record"
	"github.com/dialpay/dial_pay/internal/retry"
	"github.com/dialpay/dial_pay/internal/wire"
)

// EventSignature identifies the transfer-confirmed notification event. The
// sender and receiver identity hashes ride as indexed topics so historical
// log scans can filter on either side.
const EventSignature = "TransferConfirmed(bytes32,bytes32,bytes)"

// EventTopic is the derived topic0 for EventSignature.
var EventTopic = wire.EventTopic(EventSignature)

// Notifier emits transfer-confirmed events, retrying only nonce-class
// failures. Emission is best effort: it must never run before the settlement
// confirmed, and its failure never fails the settlement.
type Notifier struct {
	ledger      chain.Ledger
	policy      retry.Policy
	settleDelay time.Duration
	logger      *slog.Logger
}

// Option tunes a Notifier.
type Option func(*Notifier)

// WithSettleDelay overrides the pause between settlement confirmation and
// event submission.
func WithSettleDelay(d time.Duration) Option {
	return func(n *Notifier) { n.settleDelay = d }
}

// WithMaxAttempts overrides the retry bound for nonce conflicts.
func WithMaxAttempts(attempts int) Option {
	return func(n *Notifier) { n.policy.MaxAttempts = attempts }
}

// NewNotifier builds a notifier with the default bounded retry policy:
// three attempts, linear backoff, nonce conflicts only.
func NewNotifier(ledger chain.Ledger, logger *slog.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		ledger: ledger,
		policy: retry.Policy{
			MaxAttempts: 3,
			Backoff:     retry.LinearBackoff(500 * time.Millisecond),
			Retryable:   func(err error) bool { return errors.Is(err, chain.ErrNonceConflict) },
		},
		settleDelay: 250 * time.Millisecond,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify emits the transfer-confirmed event for a settled transfer. The
// caller must only invoke it after a confirmed, non-reverted settlement.
func (n *Notifier) Notify(ctx context.Context, rec record.Record) error {
	// Let the settlement's nonce fully propagate before submitting the next
	// transaction from the same signer.
	if n.settleDelay > 0 {
		select {
		case <-time.After(n.settleDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if nonce, err := n.ledger.PendingNonce(ctx); err == nil {
		n.logger.Debug("pending nonce before notification", "nonce", nonce, "tx_id", rec.TxID)
	}

	topics := []string{EventTopic, rec.FromIdentityHash, rec.ToIdentityHash}
	payload := record.Encode(rec)

	attempt := 0
	err := retry.Do(ctx, n.policy, func(ctx context.Context) error {
		attempt++
		eventTx, err := n.ledger.EmitEvent(ctx, topics, payload)
		if err != nil {
			n.logger.Warn("notification emission failed",
				"tx_id", rec.TxID, "attempt", attempt, "error", err)
			return err
		}
		n.logger.Info("notification emitted", "tx_id", rec.TxID, "event_tx", eventTx)
		return nil
	})
	if err != nil {
		return fmt.Errorf("notify transfer %s: %w", rec.TxID, err)
	}
	return nil
}
