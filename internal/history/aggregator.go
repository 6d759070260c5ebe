package history

import (
	"context"
	"log/slog"
	"sort"

	"github.com/dialpay/dial_pay/internal/chain"
	"github.com/dialpay/dial_pay/internal/notify"
	"github.com/dialpay/dial_pay/internal/phonehash"
	"github.com/dialpay/dial_pay/internal/record"
	"github.com/dialpay/dial_pay/internal/registry"
)

// Direction labels a record relative to the viewer identity.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// LabelledRecord is one history entry with its direction for the viewer.
type LabelledRecord struct {
	record.Record
	Direction Direction
}

// Aggregator reconstructs per-identity transfer history. The store's
// composite key is the transaction id, which cannot be partially matched on
// identity, so the primary path is a full scan of the engine's own entries
// filtered in memory. When that scan fails outright the aggregator falls
// back to the ledger's historical event log.
type Aggregator struct {
	store       chain.Store
	ledger      chain.Ledger
	resolver    *registry.Resolver
	schemaID    string
	engineOwner string
	logger      *slog.Logger
}

// NewAggregator builds a history aggregator scanning the engine's own
// transfer entries.
func NewAggregator(store chain.Store, ledger chain.Ledger, resolver *registry.Resolver, schemaID, engineOwner string, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		store:       store,
		ledger:      ledger,
		resolver:    resolver,
		schemaID:    schemaID,
		engineOwner: engineOwner,
		logger:      logger,
	}
}

// Query returns transfers touching ref, most recent first, truncated to
// limit. ref may be an identity hash or a wallet address; addresses are
// reverse-resolved through the registry first.
func (a *Aggregator) Query(ctx context.Context, ref string, limit int) ([]LabelledRecord, error) {
	target := ref
	if !phonehash.IsHash(ref) {
		hash, err := a.resolver.ReverseLookup(ctx, ref)
		if err != nil {
			return nil, err
		}
		target = hash
	}

	records, err := a.scanStore(ctx, target)
	if err != nil {
		a.logger.Warn("history bulk query failed, falling back to event logs",
			"target", target, "error", err)
		records, err = a.scanLogs(ctx, target)
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	out := make([]LabelledRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, LabelledRecord{Record: rec, Direction: direction(rec, target)})
	}
	return out, nil
}

func (a *Aggregator) scanStore(ctx context.Context, target string) ([]record.Record, error) {
	entries, err := a.store.GetAllForOwner(ctx, a.schemaID, a.engineOwner)
	if err != nil {
		return nil, err
	}
	var out []record.Record
	for _, e := range entries {
		rec, err := record.Decode(e)
		if err != nil {
			a.logger.Debug("skipping undecodable history entry", "key", e.Key, "error", err)
			continue
		}
		if rec.FromIdentityHash == target || rec.ToIdentityHash == target {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (a *Aggregator) scanLogs(ctx context.Context, target string) ([]record.Record, error) {
	logs, err := a.ledger.GetLogs(ctx, notify.EventTopic, target)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []record.Record
	for _, l := range logs {
		rec, err := record.DecodePayload(l.Data)
		if err != nil {
			a.logger.Debug("skipping undecodable event payload", "tx_id", l.TxID, "error", err)
			continue
		}
		if seen[rec.TxID] {
			continue
		}
		seen[rec.TxID] = true
		if rec.Timestamp.IsZero() {
			rec.Timestamp = l.Timestamp
		}
		out = append(out, rec)
	}
	return out, nil
}

// direction labels a record for the viewer. A zero-hash sender means the
// origin is unknown, which always reads as received.
func direction(rec record.Record, viewer string) Direction {
	if rec.FromIdentityHash == phonehash.ZeroHash {
		return DirectionReceived
	}
	if rec.FromIdentityHash == viewer {
		return DirectionSent
	}
	return DirectionReceived
}
