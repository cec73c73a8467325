// Package program implements the x-staking instruction handlers. Each handler
// validates its input, applies its account writes, and only then emits the
// matching event into the transaction log.
package program

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"xstaking/internal/events"
	"xstaking/internal/host"
	"xstaking/internal/pubkey"
)

var (
	ErrZeroAmount        = errors.New("amount must be greater than zero")
	ErrInsufficientStake = errors.New("amount exceeds staked balance")
	ErrTreasuryExists    = errors.New("treasury already initialized")
	ErrTreasuryNotFound  = errors.New("treasury not found")
	ErrOverflow          = errors.New("arithmetic overflow")
	ErrAccountData       = errors.New("invalid account data")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// Seed tags for derived addresses.
var (
	TreasuryTag      = []byte("treasury")
	TreasuryVaultTag = []byte("treasury-vault")
	PosMintTag       = []byte("pos-mint")
	UserPosVaultTag  = []byte("user-pos-vault")
)

// Instruction names reported to the host.
const (
	InstructionCreateTreasury = "create_treasury"
	InstructionDeposit        = "deposit"
	InstructionClaim          = "claim"
)

// Addresses are the accounts derived for one treasury.
type Addresses struct {
	Treasury      pubkey.Pubkey
	TreasuryVault pubkey.Pubkey
	PosMint       pubkey.Pubkey
	Bump          uint8
}

// DeriveAddresses returns the treasury, vault and POS mint program addresses
// for a (mint, authority) pair.
func DeriveAddresses(programID, treasuryMint, authority pubkey.Pubkey) (Addresses, error) {
	treasury, bump, err := pubkey.Derive(programID, TreasuryTag, treasuryMint[:], authority[:])
	if err != nil {
		return Addresses{}, err
	}
	vault, _, err := pubkey.Derive(programID, TreasuryVaultTag, treasury[:])
	if err != nil {
		return Addresses{}, err
	}
	posMint, _, err := pubkey.Derive(programID, PosMintTag, treasury[:])
	if err != nil {
		return Addresses{}, err
	}
	return Addresses{Treasury: treasury, TreasuryVault: vault, PosMint: posMint, Bump: bump}, nil
}

// PositionAddress returns the POS vault of owner under posMint.
func PositionAddress(programID, posMint, owner pubkey.Pubkey) (pubkey.Pubkey, error) {
	addr, _, err := pubkey.Derive(programID, UserPosVaultTag, posMint[:], owner[:])
	return addr, err
}

// Program submits x-staking instructions to a host.
type Program struct {
	host   *host.Host
	logger *zap.Logger
}

func New(h *host.Host, logger *zap.Logger) *Program {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Program{host: h, logger: logger}
}

// CreateTreasury initializes the treasury for (treasuryMint, authority).
func (p *Program) CreateTreasury(ctx context.Context, authority, treasuryMint pubkey.Pubkey) (Addresses, host.Receipt, error) {
	addrs, err := DeriveAddresses(p.host.ProgramID(), treasuryMint, authority)
	if err != nil {
		return Addresses{}, host.Receipt{}, fmt.Errorf("create treasury: %w", err)
	}
	receipt, err := p.host.Execute(ctx, InstructionCreateTreasury, CreateTreasuryHandler(authority, treasuryMint))
	if err != nil {
		return Addresses{}, host.Receipt{}, fmt.Errorf("create treasury: %w", err)
	}
	p.logger.Info("treasury created",
		zap.String("treasury", addrs.Treasury.String()),
		zap.String("authority", authority.String()),
		zap.String("signature", receipt.Signature),
	)
	return addrs, receipt, nil
}

// Deposit stakes amount from depositor into treasury.
func (p *Program) Deposit(ctx context.Context, treasury, depositor pubkey.Pubkey, amount uint64) (host.Receipt, error) {
	receipt, err := p.host.Execute(ctx, InstructionDeposit, DepositHandler(treasury, depositor, amount))
	if err != nil {
		return host.Receipt{}, fmt.Errorf("deposit: %w", err)
	}
	p.logger.Info("deposited",
		zap.String("treasury", treasury.String()),
		zap.String("depositor", depositor.String()),
		zap.Uint64("amount", amount),
		zap.String("signature", receipt.Signature),
	)
	return receipt, nil
}

// Claim redeems amount of claimant's stake from treasury.
func (p *Program) Claim(ctx context.Context, treasury, claimant pubkey.Pubkey, amount uint64) (host.Receipt, error) {
	receipt, err := p.host.Execute(ctx, InstructionClaim, ClaimHandler(treasury, claimant, amount))
	if err != nil {
		return host.Receipt{}, fmt.Errorf("claim: %w", err)
	}
	p.logger.Info("claimed",
		zap.String("treasury", treasury.String()),
		zap.String("claimant", claimant.String()),
		zap.Uint64("amount", amount),
		zap.String("signature", receipt.Signature),
	)
	return receipt, nil
}

// Treasury reads committed treasury state.
func (p *Program) Treasury(treasury pubkey.Pubkey) (Treasury, bool, error) {
	data, ok := p.host.Account(treasury)
	if !ok {
		return Treasury{}, false, nil
	}
	t, err := unmarshalTreasury(data)
	if err != nil {
		return Treasury{}, false, err
	}
	return t, true, nil
}

// Position reads the committed stake of owner in treasury. Missing positions are zero.
func (p *Program) Position(treasury, owner pubkey.Pubkey) (uint64, error) {
	t, ok, err := p.Treasury(treasury)
	if err != nil || !ok {
		return 0, err
	}
	addr, err := PositionAddress(p.host.ProgramID(), t.PosMint, owner)
	if err != nil {
		return 0, err
	}
	data, ok := p.host.Account(addr)
	if !ok {
		return 0, nil
	}
	pos, err := unmarshalPosition(data)
	if err != nil {
		return 0, err
	}
	return pos.Amount, nil
}

// CreateTreasuryHandler builds the create_treasury instruction.
func CreateTreasuryHandler(authority, treasuryMint pubkey.Pubkey) host.Handler {
	return func(tx *host.Context) error {
		if authority.IsZero() || treasuryMint.IsZero() {
			return fmt.Errorf("%w: authority and mint are required", ErrInvalidArgument)
		}
		addrs, err := DeriveAddresses(tx.ProgramID(), treasuryMint, authority)
		if err != nil {
			return err
		}
		if _, exists := tx.Account(addrs.Treasury); exists {
			return fmt.Errorf("%w: %s", ErrTreasuryExists, addrs.Treasury)
		}

		t := Treasury{
			Authority:     authority,
			TreasuryMint:  treasuryMint,
			TreasuryVault: addrs.TreasuryVault,
			PosMint:       addrs.PosMint,
			CreatedSlot:   tx.Slot,
			Bump:          addrs.Bump,
		}
		data, err := t.marshal()
		if err != nil {
			return err
		}
		tx.SetAccount(addrs.Treasury, data)

		return events.EmitTreasuryCreated(tx, events.TreasuryCreated{
			Treasury:      addrs.Treasury,
			Authority:     authority,
			TreasuryMint:  treasuryMint,
			TreasuryVault: addrs.TreasuryVault,
			PosMint:       addrs.PosMint,
			Slot:          tx.Slot,
			UnixTimestamp: tx.UnixTimestamp,
		})
	}
}

// DepositHandler builds the deposit instruction: vault and position grow by amount.
func DepositHandler(treasury, depositor pubkey.Pubkey, amount uint64) host.Handler {
	return func(tx *host.Context) error {
		if amount == 0 {
			return ErrZeroAmount
		}
		if depositor.IsZero() {
			return fmt.Errorf("%w: depositor is required", ErrInvalidArgument)
		}
		t, err := loadTreasury(tx, treasury)
		if err != nil {
			return err
		}
		posAddr, err := PositionAddress(tx.ProgramID(), t.PosMint, depositor)
		if err != nil {
			return err
		}
		pos, err := loadPosition(tx, posAddr, treasury, depositor)
		if err != nil {
			return err
		}

		if t.VaultBalance+amount < t.VaultBalance || t.PosSupply+amount < t.PosSupply || pos.Amount+amount < pos.Amount {
			return ErrOverflow
		}
		t.VaultBalance += amount
		t.PosSupply += amount
		pos.Amount += amount

		if err := writeAccounts(tx, treasury, t, posAddr, pos); err != nil {
			return err
		}

		return events.EmitDeposited(tx, events.Deposited{
			Treasury:        treasury,
			Depositor:       depositor,
			Amount:          amount,
			TreasuryBalance: t.VaultBalance,
			DepositorStake:  pos.Amount,
			Slot:            tx.Slot,
			UnixTimestamp:   tx.UnixTimestamp,
		})
	}
}

// ClaimHandler builds the claim instruction: amount may not exceed the
// claimant's position.
func ClaimHandler(treasury, claimant pubkey.Pubkey, amount uint64) host.Handler {
	return func(tx *host.Context) error {
		if amount == 0 {
			return ErrZeroAmount
		}
		if claimant.IsZero() {
			return fmt.Errorf("%w: claimant is required", ErrInvalidArgument)
		}
		t, err := loadTreasury(tx, treasury)
		if err != nil {
			return err
		}
		posAddr, err := PositionAddress(tx.ProgramID(), t.PosMint, claimant)
		if err != nil {
			return err
		}
		pos, err := loadPosition(tx, posAddr, treasury, claimant)
		if err != nil {
			return err
		}

		if amount > pos.Amount {
			return fmt.Errorf("%w: requested %d, staked %d", ErrInsufficientStake, amount, pos.Amount)
		}
		if amount > t.VaultBalance || amount > t.PosSupply {
			return fmt.Errorf("%w: vault %d below claim %d", ErrAccountData, t.VaultBalance, amount)
		}
		t.VaultBalance -= amount
		t.PosSupply -= amount
		pos.Amount -= amount

		if err := writeAccounts(tx, treasury, t, posAddr, pos); err != nil {
			return err
		}

		return events.EmitClaimed(tx, events.Claimed{
			Treasury:        treasury,
			Claimant:        claimant,
			Amount:          amount,
			TreasuryBalance: t.VaultBalance,
			ClaimantStake:   pos.Amount,
			Slot:            tx.Slot,
			UnixTimestamp:   tx.UnixTimestamp,
		})
	}
}

func writeAccounts(tx *host.Context, treasury pubkey.Pubkey, t Treasury, posAddr pubkey.Pubkey, pos Position) error {
	treasuryData, err := t.marshal()
	if err != nil {
		return err
	}
	posData, err := pos.marshal()
	if err != nil {
		return err
	}
	tx.SetAccount(treasury, treasuryData)
	tx.SetAccount(posAddr, posData)
	return nil
}

func loadTreasury(tx *host.Context, treasury pubkey.Pubkey) (Treasury, error) {
	data, ok := tx.Account(treasury)
	if !ok {
		return Treasury{}, fmt.Errorf("%w: %s", ErrTreasuryNotFound, treasury)
	}
	return unmarshalTreasury(data)
}

func loadPosition(tx *host.Context, addr, treasury, owner pubkey.Pubkey) (Position, error) {
	data, ok := tx.Account(addr)
	if !ok {
		return Position{Treasury: treasury, Owner: owner}, nil
	}
	pos, err := unmarshalPosition(data)
	if err != nil {
		return Position{}, err
	}
	if pos.Treasury != treasury || pos.Owner != owner {
		return Position{}, fmt.Errorf("%w: position owner mismatch", ErrAccountData)
	}
	return pos, nil
}
