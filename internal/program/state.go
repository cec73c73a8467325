package program

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"xstaking/internal/pubkey"
)

var (
	treasuryTag = accountDiscriminator("Treasury")
	positionTag = accountDiscriminator("Position")
)

func accountDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// Treasury is the on-chain treasury account.
type Treasury struct {
	Authority     pubkey.Pubkey
	TreasuryMint  pubkey.Pubkey
	TreasuryVault pubkey.Pubkey
	PosMint       pubkey.Pubkey
	VaultBalance  uint64
	PosSupply     uint64
	CreatedSlot   uint64
	Bump          uint8
}

// Position is a depositor's POS balance in one treasury. It is the claimant's
// entitlement: at most Amount can be claimed.
type Position struct {
	Treasury pubkey.Pubkey
	Owner    pubkey.Pubkey
	Amount   uint64
}

func (t Treasury) marshal() ([]byte, error) {
	return marshalAccount(treasuryTag, t)
}

func unmarshalTreasury(data []byte) (Treasury, error) {
	var t Treasury
	if err := unmarshalAccount(data, treasuryTag, "treasury", &t); err != nil {
		return Treasury{}, err
	}
	return t, nil
}

func (p Position) marshal() ([]byte, error) {
	return marshalAccount(positionTag, p)
}

func unmarshalPosition(data []byte) (Position, error) {
	var p Position
	if err := unmarshalAccount(data, positionTag, "position", &p); err != nil {
		return Position{}, err
	}
	return p, nil
}

// marshalAccount writes tag followed by the Borsh body of v.
func marshalAccount(tag [8]byte, v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)
	if err := enc.WriteBytes(tag[:], false); err != nil {
		return nil, err
	}
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode account: %w", err)
	}
	return buf.Bytes(), nil
}

func unmarshalAccount(data []byte, tag [8]byte, kind string, v interface{}) error {
	if len(data) < len(tag) || !bytes.Equal(data[:len(tag)], tag[:]) {
		return fmt.Errorf("%w: not a %s account", ErrAccountData, kind)
	}
	dec := bin.NewBorshDecoder(data[len(tag):])
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrAccountData, kind, err)
	}
	if dec.Remaining() != 0 {
		return fmt.Errorf("%w: %s has %d trailing bytes", ErrAccountData, kind, dec.Remaining())
	}
	return nil
}
