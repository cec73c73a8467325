// Package pubkey holds the address helpers shared by the program, host and
// off-chain tools. Addresses are solana-go public keys.
package pubkey

import (
	"crypto/sha256"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Size is the byte length of an account address.
const Size = solana.PublicKeyLength

// Pubkey is an account address rendered as base58.
type Pubkey = solana.PublicKey

// Zero is the all-zero address (the system program).
var Zero Pubkey

// Parse decodes a base58 address.
func Parse(input string) (Pubkey, error) {
	pk, err := solana.PublicKeyFromBase58(input)
	if err != nil {
		return Pubkey{}, fmt.Errorf("invalid pubkey %q: %w", input, err)
	}
	return pk, nil
}

// MustParse is Parse for constants and tests.
func MustParse(input string) Pubkey {
	return solana.MustPublicKeyFromBase58(input)
}

// FromBytes copies a raw 32-byte slice into a Pubkey.
func FromBytes(data []byte) (Pubkey, error) {
	if len(data) != Size {
		return Pubkey{}, fmt.Errorf("invalid pubkey length %d", len(data))
	}
	return solana.PublicKeyFromBytes(data), nil
}

// Derive finds the program derived address for seeds under programID and the
// bump that pushed it off the ed25519 curve.
func Derive(programID Pubkey, seeds ...[]byte) (Pubkey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return Pubkey{}, 0, fmt.Errorf("derive address: %w", err)
	}
	return addr, bump, nil
}

// FromSeed hashes a label into a stable address. Scenarios and fixtures use it
// in place of wallet keypairs.
func FromSeed(label string) Pubkey {
	return Pubkey(sha256.Sum256([]byte(label)))
}
