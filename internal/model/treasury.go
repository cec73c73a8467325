package model

import "time"

// TreasurySnapshot is the reconstructed state of one treasury after replay.
type TreasurySnapshot struct {
	Treasury      string
	Authority     string
	TreasuryMint  string
	Balance       uint64
	Depositors    int
	DepositCount  uint64
	ClaimCount    uint64
	TotalDeposits uint64
	TotalClaims   uint64
	CreatedSlot   uint64
	LastSlot      uint64
	UpdatedAt     time.Time
}
