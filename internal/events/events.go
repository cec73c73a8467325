// Package events declares the notifications published by the x-staking program
// and the operations instruction handlers use to emit them.
//
// Every record is a write-once fact about an instruction that already applied its
// account writes. Handlers call the matching Emit function exactly once, after the
// state change, and propagate any error so the host aborts the transaction.
package events

import (
	"crypto/sha256"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"xstaking/internal/pubkey"
)

// WireVersion is written after the discriminator of every record.
const WireVersion uint8 = 1

const (
	NameTreasuryCreated = "TreasuryCreated"
	NameDeposited       = "Deposited"
	NameClaimed         = "Claimed"
)

// DiscriminatorSize is the length of the tag that prefixes each encoded record.
const DiscriminatorSize = 8

var (
	// ErrMalformedEvent marks a record whose fields violate the emission contract.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrUnknownEvent is returned by Decode for a discriminator this program never emits.
	ErrUnknownEvent = errors.New("unknown event discriminator")
)

// Event is one of TreasuryCreated, Deposited or Claimed.
type Event interface {
	EventName() string
	Validate() error
	MarshalWithEncoder(enc *bin.Encoder) error
}

// Discriminator returns the Anchor event tag: sha256("event:<name>")[:8].
func Discriminator(name string) [DiscriminatorSize]byte {
	sum := sha256.Sum256([]byte("event:" + name))
	var d [DiscriminatorSize]byte
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

var (
	discTreasuryCreated = Discriminator(NameTreasuryCreated)
	discDeposited       = Discriminator(NameDeposited)
	discClaimed         = Discriminator(NameClaimed)
)

// TreasuryCreated is published when a treasury account has been initialized.
type TreasuryCreated struct {
	Treasury      pubkey.Pubkey `json:"treasury"`
	Authority     pubkey.Pubkey `json:"authority"`
	TreasuryMint  pubkey.Pubkey `json:"treasury_mint"`
	TreasuryVault pubkey.Pubkey `json:"treasury_vault"`
	PosMint       pubkey.Pubkey `json:"pos_mint"`
	Slot          uint64        `json:"slot"`
	UnixTimestamp int64         `json:"unix_timestamp"`
}

func (TreasuryCreated) EventName() string { return NameTreasuryCreated }

func (e TreasuryCreated) Validate() error {
	switch {
	case e.Treasury.IsZero():
		return malformed(NameTreasuryCreated, "treasury is zero")
	case e.Authority.IsZero():
		return malformed(NameTreasuryCreated, "authority is zero")
	case e.TreasuryMint.IsZero():
		return malformed(NameTreasuryCreated, "treasury mint is zero")
	case e.TreasuryVault.IsZero():
		return malformed(NameTreasuryCreated, "treasury vault is zero")
	case e.PosMint.IsZero():
		return malformed(NameTreasuryCreated, "pos mint is zero")
	}
	return nil
}

func (e TreasuryCreated) MarshalWithEncoder(enc *bin.Encoder) error {
	return encodeFields(enc, e.Treasury, e.Authority, e.TreasuryMint, e.TreasuryVault, e.PosMint, e.Slot, e.UnixTimestamp)
}

func (e *TreasuryCreated) UnmarshalWithDecoder(dec *bin.Decoder) error {
	return decodeFields(dec, NameTreasuryCreated,
		field{"treasury", &e.Treasury},
		field{"authority", &e.Authority},
		field{"treasury_mint", &e.TreasuryMint},
		field{"treasury_vault", &e.TreasuryVault},
		field{"pos_mint", &e.PosMint},
		field{"slot", &e.Slot},
		field{"unix_timestamp", &e.UnixTimestamp},
	)
}

// Deposited is published when funds were credited to a treasury vault.
// TreasuryBalance and DepositorStake are the values after the credit.
type Deposited struct {
	Treasury        pubkey.Pubkey `json:"treasury"`
	Depositor       pubkey.Pubkey `json:"depositor"`
	Amount          uint64        `json:"amount"`
	TreasuryBalance uint64        `json:"treasury_balance"`
	DepositorStake  uint64        `json:"depositor_stake"`
	Slot            uint64        `json:"slot"`
	UnixTimestamp   int64         `json:"unix_timestamp"`
}

func (Deposited) EventName() string { return NameDeposited }

func (e Deposited) Validate() error {
	switch {
	case e.Treasury.IsZero():
		return malformed(NameDeposited, "treasury is zero")
	case e.Depositor.IsZero():
		return malformed(NameDeposited, "depositor is zero")
	case e.Amount == 0:
		return malformed(NameDeposited, "amount is zero")
	case e.TreasuryBalance < e.Amount:
		return malformed(NameDeposited, "treasury balance below credited amount")
	case e.DepositorStake < e.Amount:
		return malformed(NameDeposited, "depositor stake below credited amount")
	}
	return nil
}

func (e Deposited) MarshalWithEncoder(enc *bin.Encoder) error {
	return encodeFields(enc, e.Treasury, e.Depositor, e.Amount, e.TreasuryBalance, e.DepositorStake, e.Slot, e.UnixTimestamp)
}

func (e *Deposited) UnmarshalWithDecoder(dec *bin.Decoder) error {
	return decodeFields(dec, NameDeposited,
		field{"treasury", &e.Treasury},
		field{"depositor", &e.Depositor},
		field{"amount", &e.Amount},
		field{"treasury_balance", &e.TreasuryBalance},
		field{"depositor_stake", &e.DepositorStake},
		field{"slot", &e.Slot},
		field{"unix_timestamp", &e.UnixTimestamp},
	)
}

// Claimed is published when a claimant withdrew part of its stake.
// TreasuryBalance and ClaimantStake are the values after the debit.
type Claimed struct {
	Treasury        pubkey.Pubkey `json:"treasury"`
	Claimant        pubkey.Pubkey `json:"claimant"`
	Amount          uint64        `json:"amount"`
	TreasuryBalance uint64        `json:"treasury_balance"`
	ClaimantStake   uint64        `json:"claimant_stake"`
	Slot            uint64        `json:"slot"`
	UnixTimestamp   int64         `json:"unix_timestamp"`
}

func (Claimed) EventName() string { return NameClaimed }

func (e Claimed) Validate() error {
	switch {
	case e.Treasury.IsZero():
		return malformed(NameClaimed, "treasury is zero")
	case e.Claimant.IsZero():
		return malformed(NameClaimed, "claimant is zero")
	case e.Amount == 0:
		return malformed(NameClaimed, "amount is zero")
	case e.TreasuryBalance+e.Amount < e.TreasuryBalance:
		return malformed(NameClaimed, "pre-claim treasury balance overflows")
	}
	return nil
}

func (e Claimed) MarshalWithEncoder(enc *bin.Encoder) error {
	return encodeFields(enc, e.Treasury, e.Claimant, e.Amount, e.TreasuryBalance, e.ClaimantStake, e.Slot, e.UnixTimestamp)
}

func (e *Claimed) UnmarshalWithDecoder(dec *bin.Decoder) error {
	return decodeFields(dec, NameClaimed,
		field{"treasury", &e.Treasury},
		field{"claimant", &e.Claimant},
		field{"amount", &e.Amount},
		field{"treasury_balance", &e.TreasuryBalance},
		field{"claimant_stake", &e.ClaimantStake},
		field{"slot", &e.Slot},
		field{"unix_timestamp", &e.UnixTimestamp},
	)
}

func malformed(name, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformedEvent, name, reason)
}
