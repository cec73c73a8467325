package indexer

import (
	"fmt"
	"strings"

	"xstaking/internal/pubkey"
)

// ParseProgramID validates a base58 program address.
func ParseProgramID(input string) (pubkey.Pubkey, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return pubkey.Pubkey{}, fmt.Errorf("program id is required")
	}
	pk, err := pubkey.Parse(input)
	if err != nil {
		return pubkey.Pubkey{}, fmt.Errorf("invalid program id: %w", err)
	}
	return pk, nil
}
