// Package wire implements the packed payload encoding used for entries
// written to the keyed data service and for notification event payloads,
// plus topic derivation for emitted events.
package wire

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ErrTruncated indicates a payload ended before all declared fields.
var ErrTruncated = errors.New("truncated payload")

// Keccak returns the Keccak-256 digest of the concatenated inputs.
func Keccak(parts ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// EventTopic derives the topic0 hash for an event signature string.
func EventTopic(signature string) string {
	return "0x" + hex.EncodeToString(Keccak([]byte(signature)))
}

// Encoder builds a packed payload: each field is a uvarint length followed by
// the field bytes. Field order is fixed by the caller and must match the
// decoder's.
type Encoder struct {
	buf []byte
}

// String appends a string field.
func (e *Encoder) String(s string) *Encoder {
	e.buf = binary.AppendUvarint(e.buf, uint64(len(s)))
	e.buf = append(e.buf, s...)
	return e
}

// Uint64 appends an unsigned integer field.
func (e *Encoder) Uint64(v uint64) *Encoder {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	e.buf = binary.AppendUvarint(e.buf, 8)
	e.buf = append(e.buf, tmp[:]...)
	return e
}

// Bytes returns the encoded payload.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Decoder reads fields in the order they were encoded.
type Decoder struct {
	buf []byte
}

// NewDecoder wraps a packed payload.
func NewDecoder(payload []byte) *Decoder {
	return &Decoder{buf: payload}
}

func (d *Decoder) next() ([]byte, error) {
	n, read := binary.Uvarint(d.buf)
	if read <= 0 {
		return nil, ErrTruncated
	}
	d.buf = d.buf[read:]
	if uint64(len(d.buf)) < n {
		return nil, ErrTruncated
	}
	field := d.buf[:n]
	d.buf = d.buf[n:]
	return field, nil
}

// String reads the next string field.
func (d *Decoder) String() (string, error) {
	field, err := d.next()
	if err != nil {
		return "", err
	}
	return string(field), nil
}

// Uint64 reads the next unsigned integer field.
func (d *Decoder) Uint64() (uint64, error) {
	field, err := d.next()
	if err != nil {
		return 0, err
	}
	if len(field) != 8 {
		return 0, fmt.Errorf("uint64 field has %d bytes", len(field))
	}
	return binary.BigEndian.Uint64(field), nil
}

type envelope struct {
	Data string `json:"data"`
}

// UnwrapEnvelope extracts the packed payload from a JSON wrapper object of
// the form {"data": "0x..."}.
func UnwrapEnvelope(raw []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Data == "" {
		return nil, errors.New("envelope has no data field")
	}
	payload, err := hex.DecodeString(strings.TrimPrefix(env.Data, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode envelope data: %w", err)
	}
	return payload, nil
}

// WrapEnvelope is the inverse of UnwrapEnvelope, used by tests to build
// wrapped-shape entries.
func WrapEnvelope(payload []byte) []byte {
	raw, _ := json.Marshal(envelope{Data: "0x" + hex.EncodeToString(payload)})
	return raw
}
