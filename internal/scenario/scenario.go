// Package scenario runs scripted x-staking instruction sequences on an
// in-process host.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"xstaking/internal/program"
	"xstaking/internal/pubkey"
)

// Step operations.
const (
	OpCreateTreasury = program.InstructionCreateTreasury
	OpDeposit        = program.InstructionDeposit
	OpClaim          = program.InstructionClaim
)

var errorNames = map[string]error{
	"zero_amount":        program.ErrZeroAmount,
	"insufficient_stake": program.ErrInsufficientStake,
	"treasury_exists":    program.ErrTreasuryExists,
	"treasury_not_found": program.ErrTreasuryNotFound,
	"overflow":           program.ErrOverflow,
}

// Scenario is a named list of steps.
type Scenario struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step is one instruction. Keys may be base58 addresses, names bound by an
// earlier step's `as`, or free labels hashed into a stable address.
type Step struct {
	Op          string `yaml:"op"`
	Authority   string `yaml:"authority,omitempty"`
	Mint        string `yaml:"mint,omitempty"`
	Treasury    string `yaml:"treasury,omitempty"`
	User        string `yaml:"user,omitempty"`
	Amount      uint64 `yaml:"amount,omitempty"`
	As          string `yaml:"as,omitempty"`
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Outcome is the result of one step.
type Outcome struct {
	Index     int
	Op        string
	Signature string
	Slot      uint64
	Events    int
	Err       error
}

// Result summarizes a run.
type Result struct {
	Outcomes  []Outcome
	Committed int
	Rejected  int
	Events    int
}

// Load reads a scenario from a YAML file.
func Load(path string) (Scenario, error) {
	file, err := os.Open(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("open scenario: %w", err)
	}
	defer file.Close()
	return Decode(file)
}

// Decode parses and validates a YAML scenario.
func Decode(r io.Reader) (Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return Scenario{}, fmt.Errorf("decode scenario: %w", err)
	}
	for i, step := range sc.Steps {
		if err := step.validate(); err != nil {
			return Scenario{}, fmt.Errorf("step %d: %w", i, err)
		}
	}
	return sc, nil
}

func (s Step) validate() error {
	switch s.Op {
	case OpCreateTreasury:
		if s.Authority == "" || s.Mint == "" {
			return fmt.Errorf("%s requires authority and mint", s.Op)
		}
	case OpDeposit, OpClaim:
		if s.Treasury == "" || s.User == "" {
			return fmt.Errorf("%s requires treasury and user", s.Op)
		}
	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}
	if s.ExpectError != "" {
		if _, ok := errorNames[s.ExpectError]; !ok {
			return fmt.Errorf("unknown expect_error %q", s.ExpectError)
		}
	}
	return nil
}

// Runner executes scenarios against a program.
type Runner struct {
	program *program.Program
	refs    map[string]pubkey.Pubkey
	logger  *zap.Logger
}

func NewRunner(p *program.Program, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{program: p, refs: make(map[string]pubkey.Pubkey), logger: logger}
}

// Run executes every step in order. A step that fails without a matching
// expect_error, or succeeds when one was expected, stops the run.
func (r *Runner) Run(ctx context.Context, sc Scenario) (Result, error) {
	var res Result
	for i, step := range sc.Steps {
		out, err := r.runStep(ctx, step)
		out.Index = i
		out.Op = step.Op
		out.Err = err
		res.Outcomes = append(res.Outcomes, out)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return res, err
			}
			want, ok := errorNames[step.ExpectError]
			if !ok || !errors.Is(err, want) {
				return res, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
			}
			res.Rejected++
			r.logger.Info("step rejected as expected", zap.Int("step", i), zap.String("op", step.Op), zap.Error(err))
			continue
		}
		if step.ExpectError != "" {
			return res, fmt.Errorf("step %d (%s): expected %s, got success", i, step.Op, step.ExpectError)
		}
		res.Committed++
		res.Events += out.Events
		r.logger.Info("step committed",
			zap.Int("step", i),
			zap.String("op", step.Op),
			zap.String("signature", out.Signature),
			zap.Uint64("slot", out.Slot),
		)
	}
	return res, nil
}

func (r *Runner) runStep(ctx context.Context, step Step) (Outcome, error) {
	switch step.Op {
	case OpCreateTreasury:
		authority, err := r.resolve(step.Authority)
		if err != nil {
			return Outcome{}, err
		}
		mint, err := r.resolve(step.Mint)
		if err != nil {
			return Outcome{}, err
		}
		addrs, receipt, err := r.program.CreateTreasury(ctx, authority, mint)
		if err != nil {
			return Outcome{}, err
		}
		if step.As != "" {
			r.refs[step.As] = addrs.Treasury
		}
		return Outcome{Signature: receipt.Signature, Slot: receipt.Slot, Events: len(receipt.Logs)}, nil
	case OpDeposit, OpClaim:
		treasury, err := r.resolve(step.Treasury)
		if err != nil {
			return Outcome{}, err
		}
		user, err := r.resolve(step.User)
		if err != nil {
			return Outcome{}, err
		}
		call := r.program.Deposit
		if step.Op == OpClaim {
			call = r.program.Claim
		}
		receipt, err := call(ctx, treasury, user, step.Amount)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Signature: receipt.Signature, Slot: receipt.Slot, Events: len(receipt.Logs)}, nil
	default:
		return Outcome{}, fmt.Errorf("unknown op %q", step.Op)
	}
}

// Resolve maps a scenario key to an address.
func (r *Runner) Resolve(name string) (pubkey.Pubkey, error) {
	return r.resolve(name)
}

func (r *Runner) resolve(name string) (pubkey.Pubkey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return pubkey.Zero, fmt.Errorf("empty key")
	}
	if key, ok := r.refs[name]; ok {
		return key, nil
	}
	if key, err := pubkey.Parse(name); err == nil {
		return key, nil
	}
	return pubkey.FromSeed(name), nil
}

// SteppedClock returns a clock that starts at start and advances by step on
// every call after the first.
func SteppedClock(start time.Time, step time.Duration) func() time.Time {
	next := start
	return func() time.Time {
		now := next
		next = next.Add(step)
		return now
	}
}
