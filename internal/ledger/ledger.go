// Package ledger rebuilds treasury state from the event stream and checks that
// every event is consistent with the state before it.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/bits"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"xstaking/internal/events"
	"xstaking/internal/metrics"
	"xstaking/internal/model"
)

// ErrViolation is returned by Apply in strict mode.
var ErrViolation = errors.New("event stream invariant violated")

// Rule names reported in violations.
const (
	RuleDuplicateTreasury = "duplicate_treasury"
	RuleUnknownTreasury   = "unknown_treasury"
	RuleZeroAmount        = "zero_amount"
	RuleDepositBalance    = "deposit_balance"
	RuleDepositStake      = "deposit_stake"
	RuleClaimEntitlement  = "claim_entitlement"
	RuleClaimBalance      = "claim_balance"
	RuleClaimStake        = "claim_stake"
	RuleTotalOverflow     = "total_overflow"
	RuleSlotOrder         = "slot_order"
	RulePayloadSlot       = "payload_slot"
)

// Violation describes one inconsistent event.
type Violation struct {
	Rule      string `json:"rule"`
	Slot      uint64 `json:"slot"`
	Signature string `json:"signature"`
	LogIndex  uint64 `json:"log_index"`
	Treasury  string `json:"treasury"`
	Detail    string `json:"detail"`
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s at %s:%d: %s", v.Rule, v.Signature, v.LogIndex, v.Detail)
}

type treasuryState struct {
	snapshot  model.TreasurySnapshot
	positions map[string]uint64
}

// Ledger is the replayed state. It is not safe for concurrent use.
type Ledger struct {
	strict     bool
	treasuries map[string]*treasuryState
	lastSlot   uint64
	violations []Violation
	metrics    *metrics.Registry
	logger     *zap.Logger
}

// New builds an empty ledger. In strict mode the first violation stops replay.
func New(strict bool, reg *metrics.Registry, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		strict:     strict,
		treasuries: make(map[string]*treasuryState),
		metrics:    reg,
		logger:     logger,
	}
}

// Apply folds one event into the ledger. Events must be supplied in stream order.
func (l *Ledger) Apply(record model.TypedEventRecord) error {
	if record.Slot < l.lastSlot {
		if err := l.violate(record, RuleSlotOrder, fmt.Sprintf("slot %d after %d", record.Slot, l.lastSlot)); err != nil {
			return err
		}
	} else {
		l.lastSlot = record.Slot
	}

	switch record.EventName {
	case events.NameTreasuryCreated:
		var data model.TreasuryCreatedData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return fmt.Errorf("decode TreasuryCreated: %w", err)
		}
		return l.applyCreated(record, data)
	case events.NameDeposited:
		var data model.DepositedEventData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return fmt.Errorf("decode Deposited: %w", err)
		}
		return l.applyDeposited(record, data)
	case events.NameClaimed:
		var data model.ClaimedEventData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return fmt.Errorf("decode Claimed: %w", err)
		}
		return l.applyClaimed(record, data)
	default:
		return fmt.Errorf("unsupported event name: %s", record.EventName)
	}
}

func (l *Ledger) applyCreated(record model.TypedEventRecord, data model.TreasuryCreatedData) error {
	if err := l.checkPayloadSlot(record, data.Slot); err != nil {
		return err
	}
	if _, ok := l.treasuries[data.Treasury]; ok {
		return l.violate(record, RuleDuplicateTreasury, "treasury "+data.Treasury+" already created")
	}
	l.treasuries[data.Treasury] = &treasuryState{
		snapshot: model.TreasurySnapshot{
			Treasury:     data.Treasury,
			Authority:    data.Authority,
			TreasuryMint: data.TreasuryMint,
			CreatedSlot:  record.Slot,
			LastSlot:     record.Slot,
			UpdatedAt:    blockTime(record),
		},
		positions: make(map[string]uint64),
	}
	return nil
}

func (l *Ledger) applyDeposited(record model.TypedEventRecord, data model.DepositedEventData) error {
	if err := l.checkPayloadSlot(record, data.Slot); err != nil {
		return err
	}
	amount, balance, stake, err := parseAmounts(data.Amount, data.TreasuryBalance, data.DepositorStake)
	if err != nil {
		return fmt.Errorf("deposited %s:%d: %w", record.Signature, record.LogIndex, err)
	}
	st, err := l.treasury(record, data.Treasury)
	if err != nil || st == nil {
		return err
	}
	if amount == 0 {
		if err := l.violate(record, RuleZeroAmount, "deposit of zero"); err != nil {
			return err
		}
	}
	if want, carry := bits.Add64(st.snapshot.Balance, amount, 0); carry != 0 {
		detail := fmt.Sprintf("balance %d plus deposit %d overflows u64", st.snapshot.Balance, amount)
		if err := l.violate(record, RuleDepositBalance, detail); err != nil {
			return err
		}
	} else if balance != want {
		if err := l.violate(record, RuleDepositBalance, fmt.Sprintf("balance %d, expected %d", balance, want)); err != nil {
			return err
		}
	}
	prior := st.positions[data.Depositor]
	if want, carry := bits.Add64(prior, amount, 0); carry != 0 {
		detail := fmt.Sprintf("stake %d plus deposit %d overflows u64", prior, amount)
		if err := l.violate(record, RuleDepositStake, detail); err != nil {
			return err
		}
	} else if stake != want {
		if err := l.violate(record, RuleDepositStake, fmt.Sprintf("stake %d, expected %d", stake, want)); err != nil {
			return err
		}
	}
	total, err := l.addTotal(record, st.snapshot.TotalDeposits, amount)
	if err != nil {
		return err
	}

	if _, ok := st.positions[data.Depositor]; !ok {
		st.snapshot.Depositors++
	}
	st.positions[data.Depositor] = stake
	st.snapshot.Balance = balance
	st.snapshot.DepositCount++
	st.snapshot.TotalDeposits = total
	st.snapshot.LastSlot = record.Slot
	st.snapshot.UpdatedAt = blockTime(record)
	return nil
}

func (l *Ledger) applyClaimed(record model.TypedEventRecord, data model.ClaimedEventData) error {
	if err := l.checkPayloadSlot(record, data.Slot); err != nil {
		return err
	}
	amount, balance, stake, err := parseAmounts(data.Amount, data.TreasuryBalance, data.ClaimantStake)
	if err != nil {
		return fmt.Errorf("claimed %s:%d: %w", record.Signature, record.LogIndex, err)
	}
	st, err := l.treasury(record, data.Treasury)
	if err != nil || st == nil {
		return err
	}
	if amount == 0 {
		if err := l.violate(record, RuleZeroAmount, "claim of zero"); err != nil {
			return err
		}
	}
	prior := st.positions[data.Claimant]
	if amount > prior {
		if err := l.violate(record, RuleClaimEntitlement, fmt.Sprintf("claimed %d with stake %d", amount, prior)); err != nil {
			return err
		}
	}
	if amount > st.snapshot.Balance || balance != st.snapshot.Balance-amount {
		detail := fmt.Sprintf("balance %d after claiming %d from %d", balance, amount, st.snapshot.Balance)
		if err := l.violate(record, RuleClaimBalance, detail); err != nil {
			return err
		}
	}
	if amount > prior || stake != prior-amount {
		if err := l.violate(record, RuleClaimStake, fmt.Sprintf("stake %d after claiming %d from %d", stake, amount, prior)); err != nil {
			return err
		}
	}

	total, err := l.addTotal(record, st.snapshot.TotalClaims, amount)
	if err != nil {
		return err
	}

	st.positions[data.Claimant] = stake
	st.snapshot.Balance = balance
	st.snapshot.ClaimCount++
	st.snapshot.TotalClaims = total
	st.snapshot.LastSlot = record.Slot
	st.snapshot.UpdatedAt = blockTime(record)
	return nil
}

// addTotal adds amount to a lifetime total, saturating at the u64 maximum.
func (l *Ledger) addTotal(record model.TypedEventRecord, total, amount uint64) (uint64, error) {
	sum, carry := bits.Add64(total, amount, 0)
	if carry == 0 {
		return sum, nil
	}
	detail := fmt.Sprintf("total %d plus %d overflows u64", total, amount)
	return math.MaxUint64, l.violate(record, RuleTotalOverflow, detail)
}

// treasury returns nil state without error when an unknown treasury is tolerated.
func (l *Ledger) treasury(record model.TypedEventRecord, address string) (*treasuryState, error) {
	st, ok := l.treasuries[address]
	if ok {
		return st, nil
	}
	return nil, l.violate(record, RuleUnknownTreasury, "no TreasuryCreated for "+address)
}

func (l *Ledger) checkPayloadSlot(record model.TypedEventRecord, slot uint64) error {
	if slot == record.Slot {
		return nil
	}
	return l.violate(record, RulePayloadSlot, fmt.Sprintf("payload slot %d in transaction slot %d", slot, record.Slot))
}

func (l *Ledger) violate(record model.TypedEventRecord, rule, detail string) error {
	v := Violation{
		Rule:      rule,
		Slot:      record.Slot,
		Signature: record.Signature,
		LogIndex:  record.LogIndex,
		Treasury:  record.Treasury,
		Detail:    detail,
	}
	l.violations = append(l.violations, v)
	l.metrics.ObserveViolation(rule)
	l.logger.Warn("event stream violation",
		zap.String("rule", rule),
		zap.String("signature", record.Signature),
		zap.Uint64("log_index", record.LogIndex),
		zap.String("detail", detail),
	)
	if l.strict {
		return fmt.Errorf("%w: %v", ErrViolation, v)
	}
	return nil
}

// Violations returns the violations recorded so far.
func (l *Ledger) Violations() []Violation {
	out := make([]Violation, len(l.violations))
	copy(out, l.violations)
	return out
}

// Snapshot returns the state of one treasury.
func (l *Ledger) Snapshot(treasury string) (model.TreasurySnapshot, bool) {
	st, ok := l.treasuries[treasury]
	if !ok {
		return model.TreasurySnapshot{}, false
	}
	return st.snapshot, true
}

// Snapshots returns every treasury ordered by address.
func (l *Ledger) Snapshots() []model.TreasurySnapshot {
	out := make([]model.TreasurySnapshot, 0, len(l.treasuries))
	for _, st := range l.treasuries {
		out = append(out, st.snapshot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Treasury < out[j].Treasury })
	return out
}

// Position returns the replayed stake of owner in treasury.
func (l *Ledger) Position(treasury, owner string) uint64 {
	st, ok := l.treasuries[treasury]
	if !ok {
		return 0
	}
	return st.positions[owner]
}

func parseAmounts(values ...string) (uint64, uint64, uint64, error) {
	var out [3]uint64
	for i, v := range values {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid amount %q: %w", v, err)
		}
		out[i] = parsed
	}
	return out[0], out[1], out[2], nil
}

func blockTime(record model.TypedEventRecord) time.Time {
	if record.BlockTime == 0 {
		return time.Time{}
	}
	return time.Unix(record.BlockTime, 0).UTC()
}
