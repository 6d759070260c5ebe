package history

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/dialpay/dial_pay/internal/chain"
	"github.com/dialpay/dial_pay/internal/logging"
	"github.com/dialpay/dial_pay/internal/notify"
	"github.com/dialpay/dial_pay/internal/phonehash"
	"github.com/dialpay/dial_pay/internal/record"
	"github.com/dialpay/dial_pay/internal/registry"
)

const (
	regSchema     = "userRegistration"
	historySchema = "transferHistory"

	viewerHash = "0x1111111111111111111111111111111111111111111111111111111111111111"
	otherHash  = "0x2222222222222222222222222222222222222222222222222222222222222222"
	thirdHash  = "0x3333333333333333333333333333333333333333333333333333333333333333"
)

func transferRecord(from, to, txID string, ts int64) record.Record {
	return record.Record{
		FromIdentityHash: from,
		ToIdentityHash:   to,
		FromPhone:        "242061111111",
		ToPhone:          "242062222222",
		Amount:           big.NewInt(1500),
		Token:            "SOM",
		TxID:             txID,
		Timestamp:        time.Unix(ts, 0).UTC(),
	}
}

func newAggregator(sim *chain.SimChain) *Aggregator {
	resolver := registry.NewResolver(sim, regSchema, []string{"0xOwner"}, nil, logging.Discard())
	return NewAggregator(sim, sim, resolver, historySchema, sim.Signer(), logging.Discard())
}

func seedTransfer(t *testing.T, sim *chain.SimChain, rec record.Record) {
	t.Helper()
	if err := sim.SetEntry(context.Background(), historySchema, rec.TxID, record.Encode(rec)); err != nil {
		t.Fatalf("seed transfer %s: %v", rec.TxID, err)
	}
}

func TestQueryOrdersByTimestampDescending(t *testing.T) {
	sim := chain.NewSim("")
	sim.ProvisionSchema(historySchema)
	seedTransfer(t, sim, transferRecord(viewerHash, otherHash, "0xtx100", 100))
	seedTransfer(t, sim, transferRecord(otherHash, viewerHash, "0xtx300", 300))
	seedTransfer(t, sim, transferRecord(viewerHash, thirdHash, "0xtx200", 200))

	got, err := newAggregator(sim).Query(context.Background(), viewerHash, 10)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	for i, wantTs := range []int64{300, 200, 100} {
		if got[i].Timestamp.Unix() != wantTs {
			t.Fatalf("position %d: expected ts %d, got %d", i, wantTs, got[i].Timestamp.Unix())
		}
	}
}

func TestQueryFiltersAndLabelsDirections(t *testing.T) {
	sim := chain.NewSim("")
	sim.ProvisionSchema(historySchema)
	seedTransfer(t, sim, transferRecord(viewerHash, otherHash, "0xsent", 100))
	seedTransfer(t, sim, transferRecord(otherHash, viewerHash, "0xrecv", 200))
	seedTransfer(t, sim, transferRecord(otherHash, thirdHash, "0xunrelated", 300))

	got, err := newAggregator(sim).Query(context.Background(), viewerHash, 10)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records touching viewer, got %d", len(got))
	}
	if got[0].TxID != "0xrecv" || got[0].Direction != DirectionReceived {
		t.Fatalf("unexpected first record: %s %s", got[0].TxID, got[0].Direction)
	}
	if got[1].TxID != "0xsent" || got[1].Direction != DirectionSent {
		t.Fatalf("unexpected second record: %s %s", got[1].TxID, got[1].Direction)
	}
}

func TestQueryZeroHashSenderAlwaysReceived(t *testing.T) {
	sim := chain.NewSim("")
	sim.ProvisionSchema(historySchema)
	// Sender unknown and receiver is not the viewer either; the zero-hash
	// rule still labels it received.
	seedTransfer(t, sim, transferRecord(phonehash.ZeroHash, viewerHash, "0xairdrop", 100))

	got, err := newAggregator(sim).Query(context.Background(), viewerHash, 10)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 1 || got[0].Direction != DirectionReceived {
		t.Fatalf("zero-hash sender not labelled received: %+v", got)
	}
}

func TestQueryTruncatesToLimit(t *testing.T) {
	sim := chain.NewSim("")
	sim.ProvisionSchema(historySchema)
	for i := int64(1); i <= 5; i++ {
		seedTransfer(t, sim, transferRecord(viewerHash, otherHash, txID(i), i*100))
	}

	got, err := newAggregator(sim).Query(context.Background(), viewerHash, 2)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Timestamp.Unix() != 500 || got[1].Timestamp.Unix() != 400 {
		t.Fatalf("truncation kept the wrong records: %+v", got)
	}
}

func txID(i int64) string {
	return fmt.Sprintf("0xtx%d", i)
}

func TestQueryFallsBackToEventLogs(t *testing.T) {
	sim := chain.NewSim("")
	// historySchema never provisioned: the bulk scan fails with
	// schema-not-found and the aggregator must use the raw logs.
	rec := transferRecord(otherHash, viewerHash, "0xlogged", 100)
	topics := []string{notify.EventTopic, rec.FromIdentityHash, rec.ToIdentityHash}
	if _, err := sim.EmitEvent(context.Background(), topics, record.Encode(rec)); err != nil {
		t.Fatalf("emit event: %v", err)
	}
	// Same settlement reported twice; the fallback must deduplicate on tx id.
	if _, err := sim.EmitEvent(context.Background(), topics, record.Encode(rec)); err != nil {
		t.Fatalf("emit duplicate event: %v", err)
	}

	got, err := newAggregator(sim).Query(context.Background(), viewerHash, 10)
	if err != nil {
		t.Fatalf("fallback query failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one deduplicated record, got %d", len(got))
	}
	if got[0].TxID != "0xlogged" || got[0].Direction != DirectionReceived {
		t.Fatalf("unexpected fallback record: %+v", got[0])
	}
}

func TestQueryByWalletAddress(t *testing.T) {
	sim := chain.NewSim("")
	sim.ProvisionSchema(historySchema)
	chain.SeedEntry(sim, regSchema, "0xOwner", viewerHash, chain.EntryRawEncoded,
		registry.EncodeRegistration(registry.Registration{
			IdentityHash:  viewerHash,
			WalletAddress: "0xAAA",
			RegisteredAt:  time.Unix(1, 0),
		}))
	seedTransfer(t, sim, transferRecord(otherHash, viewerHash, "0xtx1", 100))

	got, err := newAggregator(sim).Query(context.Background(), "0xAAA", 10)
	if err != nil {
		t.Fatalf("query by address failed: %v", err)
	}
	if len(got) != 1 || got[0].Direction != DirectionReceived {
		t.Fatalf("unexpected result: %+v", got)
	}

	if _, err := newAggregator(sim).Query(context.Background(), "0xUnknown", 10); !errors.Is(err, registry.ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered for unknown address, got %v", err)
	}
}
