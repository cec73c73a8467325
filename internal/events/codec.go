package events

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

var errShortBuffer = errors.New("short buffer")

// field names one Borsh field for decode errors.
type field struct {
	name string
	ptr  interface{}
}

func encodeFields(enc *bin.Encoder, values ...interface{}) error {
	for _, v := range values {
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
	return nil
}

func decodeFields(dec *bin.Decoder, event string, fields ...field) error {
	for _, f := range fields {
		if err := dec.Decode(f.ptr); err != nil {
			return fmt.Errorf("decode %s.%s: %w", event, f.name, err)
		}
	}
	return nil
}

// Encode returns discriminator || version || Borsh fields.
func Encode(ev Event) ([]byte, error) {
	disc := Discriminator(ev.EventName())
	buf := bytes.NewBuffer(make([]byte, 0, 256))
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteBytes(disc[:], false); err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.EventName(), err)
	}
	if err := enc.WriteUint8(WireVersion); err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.EventName(), err)
	}
	if err := ev.MarshalWithEncoder(enc); err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.EventName(), err)
	}
	return buf.Bytes(), nil
}

// Decode parses an encoded record. Unknown discriminators yield ErrUnknownEvent.
func Decode(data []byte) (Event, error) {
	if len(data) < DiscriminatorSize {
		return nil, fmt.Errorf("decode event: %w", errShortBuffer)
	}
	var disc [DiscriminatorSize]byte
	copy(disc[:], data[:DiscriminatorSize])

	name, ok := nameOf(disc)
	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrUnknownEvent, disc[:])
	}

	dec := bin.NewBorshDecoder(data[DiscriminatorSize:])
	version, err := dec.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("decode %s version: %w", name, err)
	}
	if version != WireVersion {
		return nil, fmt.Errorf("decode %s: unsupported version %d", name, version)
	}

	var ev Event
	switch name {
	case NameTreasuryCreated:
		var e TreasuryCreated
		err = e.UnmarshalWithDecoder(dec)
		ev = e
	case NameDeposited:
		var e Deposited
		err = e.UnmarshalWithDecoder(dec)
		ev = e
	default:
		var e Claimed
		err = e.UnmarshalWithDecoder(dec)
		ev = e
	}
	if err != nil {
		return nil, err
	}
	if n := dec.Remaining(); n > 0 {
		return nil, fmt.Errorf("decode %s: %d trailing bytes", name, n)
	}
	return ev, nil
}

func nameOf(disc [DiscriminatorSize]byte) (string, bool) {
	switch disc {
	case discTreasuryCreated:
		return NameTreasuryCreated, true
	case discDeposited:
		return NameDeposited, true
	case discClaimed:
		return NameClaimed, true
	}
	return "", false
}

// IsKnown reports whether data starts with one of this program's discriminators.
func IsKnown(data []byte) bool {
	if len(data) < DiscriminatorSize {
		return false
	}
	var disc [DiscriminatorSize]byte
	copy(disc[:], data[:DiscriminatorSize])
	_, ok := nameOf(disc)
	return ok
}
