package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/dialpay/dial_pay/internal/chain"
	"github.com/dialpay/dial_pay/internal/wire"
)

// Record is the durable history entry for one confirmed settlement, keyed in
// the store by its transaction id. Immutable once written.
type Record struct {
	FromIdentityHash string
	ToIdentityHash   string
	FromPhone        string
	ToPhone          string
	Amount           *big.Int
	Token            string
	TxID             string
	Timestamp        time.Time
}

type structuredRecord struct {
	FromIdentityHash string `json:"from_identity_hash"`
	ToIdentityHash   string `json:"to_identity_hash"`
	FromPhone        string `json:"from_phone"`
	ToPhone          string `json:"to_phone"`
	Amount           string `json:"amount"`
	Token            string `json:"token"`
	TxID             string `json:"tx_id"`
	Timestamp        int64  `json:"timestamp"`
}

var errCorruptRecord = errors.New("corrupt transfer record")

// Encode packs a record into its wire payload.
func Encode(rec Record) []byte {
	amount := ""
	if rec.Amount != nil {
		amount = rec.Amount.String()
	}
	return new(wire.Encoder).
		String(rec.FromIdentityHash).
		String(rec.ToIdentityHash).
		String(rec.FromPhone).
		String(rec.ToPhone).
		String(amount).
		String(rec.Token).
		String(rec.TxID).
		Uint64(uint64(rec.Timestamp.Unix())).
		Bytes()
}

// Decode reads one store entry into a Record, dispatching on wire shape.
// Records without both identity hashes and a transaction id are rejected.
func Decode(e chain.Entry) (Record, error) {
	var (
		rec Record
		err error
	)
	switch e.Kind {
	case chain.EntryStructured:
		rec, err = decodeStructured(e.Payload)
	case chain.EntryRawEncoded:
		rec, err = DecodePayload(e.Payload)
	case chain.EntryWrapped:
		var inner []byte
		if inner, err = wire.UnwrapEnvelope(e.Payload); err == nil {
			rec, err = DecodePayload(inner)
		}
	default:
		err = fmt.Errorf("unknown entry kind %d", e.Kind)
	}
	if err != nil {
		return Record{}, err
	}
	if rec.FromIdentityHash == "" || rec.ToIdentityHash == "" || rec.TxID == "" {
		return Record{}, errCorruptRecord
	}
	return rec, nil
}

// DecodePayload reads the packed form directly, as carried in notification
// event payloads and raw store entries.
func DecodePayload(payload []byte) (Record, error) {
	dec := wire.NewDecoder(payload)
	var (
		rec Record
		err error
	)
	read := func(dst *string) {
		if err != nil {
			return
		}
		*dst, err = dec.String()
	}
	var amount string
	read(&rec.FromIdentityHash)
	read(&rec.ToIdentityHash)
	read(&rec.FromPhone)
	read(&rec.ToPhone)
	read(&amount)
	read(&rec.Token)
	read(&rec.TxID)
	if err != nil {
		return Record{}, err
	}
	ts, err := dec.Uint64()
	if err != nil {
		return Record{}, err
	}
	rec.Timestamp = time.Unix(int64(ts), 0).UTC()
	if amount != "" {
		units, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return Record{}, fmt.Errorf("%w: bad amount %q", errCorruptRecord, amount)
		}
		rec.Amount = units
	}
	return rec, nil
}

func decodeStructured(payload []byte) (Record, error) {
	var s structuredRecord
	if err := json.Unmarshal(payload, &s); err != nil {
		return Record{}, fmt.Errorf("decode structured record: %w", err)
	}
	rec := Record{
		FromIdentityHash: s.FromIdentityHash,
		ToIdentityHash:   s.ToIdentityHash,
		FromPhone:        s.FromPhone,
		ToPhone:          s.ToPhone,
		Token:            s.Token,
		TxID:             s.TxID,
		Timestamp:        time.Unix(s.Timestamp, 0).UTC(),
	}
	if s.Amount != "" {
		units, ok := new(big.Int).SetString(s.Amount, 10)
		if !ok {
			return Record{}, fmt.Errorf("%w: bad amount %q", errCorruptRecord, s.Amount)
		}
		rec.Amount = units
	}
	return rec, nil
}
