package model

// Amounts are decimal strings so consumers without 64-bit integers keep precision.

// TreasuryCreatedData is the decoded TreasuryCreated payload.
type TreasuryCreatedData struct {
	Treasury      string `json:"treasury"`
	Authority     string `json:"authority"`
	TreasuryMint  string `json:"treasury_mint"`
	TreasuryVault string `json:"treasury_vault"`
	PosMint       string `json:"pos_mint"`
	Slot          uint64 `json:"slot"`
	UnixTimestamp int64  `json:"unix_timestamp"`
}

// DepositedEventData is the decoded Deposited payload.
type DepositedEventData struct {
	Treasury        string `json:"treasury"`
	Depositor       string `json:"depositor"`
	Amount          string `json:"amount"`
	TreasuryBalance string `json:"treasury_balance"`
	DepositorStake  string `json:"depositor_stake"`
	Slot            uint64 `json:"slot"`
	UnixTimestamp   int64  `json:"unix_timestamp"`
}

// ClaimedEventData is the decoded Claimed payload.
type ClaimedEventData struct {
	Treasury        string `json:"treasury"`
	Claimant        string `json:"claimant"`
	Amount          string `json:"amount"`
	TreasuryBalance string `json:"treasury_balance"`
	ClaimantStake   string `json:"claimant_stake"`
	Slot            uint64 `json:"slot"`
	UnixTimestamp   int64  `json:"unix_timestamp"`
}
