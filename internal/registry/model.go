package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dialpay/dial_pay/internal/chain"
	"github.com/dialpay/dial_pay/internal/wire"
)

// Registration maps an identity hash to a wallet address. The engine only
// ever reads registrations; they are written by an external enrollment flow
// under whichever publisher account performed it.
type Registration struct {
	IdentityHash  string
	WalletAddress string
	Metadata      string
	RegisteredAt  time.Time
}

type structuredRegistration struct {
	IdentityHash  string `json:"identity_hash"`
	WalletAddress string `json:"wallet_address"`
	Metadata      string `json:"metadata"`
	RegisteredAt  int64  `json:"registered_at"`
}

// errCorruptEntry marks entries that decoded but are missing mandatory fields.
var errCorruptEntry = errors.New("corrupt registration entry")

// DecodeRegistration decodes one store entry into a Registration, dispatching
// on the entry's wire shape. Entries with a zero identity hash or wallet
// address are rejected rather than trusted.
func DecodeRegistration(e chain.Entry) (Registration, error) {
	var (
		reg Registration
		err error
	)
	switch e.Kind {
	case chain.EntryStructured:
		reg, err = decodeStructured(e.Payload)
	case chain.EntryRawEncoded:
		reg, err = decodePacked(e.Payload)
	case chain.EntryWrapped:
		var inner []byte
		if inner, err = wire.UnwrapEnvelope(e.Payload); err == nil {
			reg, err = decodePacked(inner)
		}
	default:
		err = fmt.Errorf("unknown entry kind %d", e.Kind)
	}
	if err != nil {
		return Registration{}, err
	}
	if reg.IdentityHash == "" || reg.WalletAddress == "" {
		return Registration{}, errCorruptEntry
	}
	return reg, nil
}

// EncodeRegistration produces the packed wire form, used by the dev
// enrollment route and by tests seeding the store.
func EncodeRegistration(reg Registration) []byte {
	return new(wire.Encoder).
		String(reg.IdentityHash).
		String(reg.WalletAddress).
		String(reg.Metadata).
		Uint64(uint64(reg.RegisteredAt.Unix())).
		Bytes()
}

func decodeStructured(payload []byte) (Registration, error) {
	var s structuredRegistration
	if err := json.Unmarshal(payload, &s); err != nil {
		return Registration{}, fmt.Errorf("decode structured registration: %w", err)
	}
	return Registration{
		IdentityHash:  s.IdentityHash,
		WalletAddress: s.WalletAddress,
		Metadata:      s.Metadata,
		RegisteredAt:  time.Unix(s.RegisteredAt, 0).UTC(),
	}, nil
}

func decodePacked(payload []byte) (Registration, error) {
	dec := wire.NewDecoder(payload)
	var (
		reg Registration
		err error
	)
	if reg.IdentityHash, err = dec.String(); err != nil {
		return Registration{}, err
	}
	if reg.WalletAddress, err = dec.String(); err != nil {
		return Registration{}, err
	}
	if reg.Metadata, err = dec.String(); err != nil {
		return Registration{}, err
	}
	ts, err := dec.Uint64()
	if err != nil {
		return Registration{}, err
	}
	reg.RegisteredAt = time.Unix(int64(ts), 0).UTC()
	return reg, nil
}
