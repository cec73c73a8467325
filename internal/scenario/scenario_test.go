package scenario

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"xstaking/internal/events"
	"xstaking/internal/host"
	"xstaking/internal/program"
	"xstaking/internal/pubkey"
	"xstaking/internal/storage"
)

const sample = `
name: basic
steps:
  - op: create_treasury
    authority: alice
    mint: usdc
    as: t1
  - op: deposit
    treasury: t1
    user: bob
    amount: 100
  - op: claim
    treasury: t1
    user: bob
    amount: 40
  - op: claim
    treasury: t1
    user: bob
    amount: 1000
    expect_error: insufficient_stake
  - op: deposit
    treasury: t1
    user: bob
    amount: 0
    expect_error: zero_amount
`

func newRunner(t *testing.T) (*Runner, *storage.MemoryStorage, *program.Program) {
	t.Helper()
	sink := storage.NewMemoryStorage()
	h := host.New(host.Config{
		ProgramID: pubkey.FromSeed("x-staking"),
		StartSlot: 10,
		Clock:     SteppedClock(time.Unix(1700000000, 0), time.Second),
	}, sink, nil, nil)
	p := program.New(h, nil)
	return NewRunner(p, nil), sink, p
}

func TestRunScenario(t *testing.T) {
	sc, err := Decode(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sc.Name != "basic" || len(sc.Steps) != 5 {
		t.Fatalf("unexpected scenario: %+v", sc)
	}

	runner, sink, p := newRunner(t)
	res, err := runner.Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Committed != 3 || res.Rejected != 2 || res.Events != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(sink.Records()) != 3 {
		t.Fatalf("expected 3 stored records, got %d", len(sink.Records()))
	}
	if res.Outcomes[0].Slot != 10 || res.Outcomes[2].Slot != 12 {
		t.Fatalf("unexpected slots: %+v", res.Outcomes)
	}

	treasury, err := runner.Resolve("t1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	stake, err := p.Position(treasury, pubkey.FromSeed("bob"))
	if err != nil || stake != 60 {
		t.Fatalf("position: %d %v", stake, err)
	}

	last := sink.Records()[2]
	if last.Slot != 12 || last.BlockTime != 1700000002 {
		t.Fatalf("unexpected last record: %+v", last)
	}
	payload, err := base64.StdEncoding.DecodeString(last.Data)
	if err != nil {
		t.Fatalf("decode data: %v", err)
	}
	ev, err := events.Decode(payload)
	if err != nil {
		t.Fatalf("decode event: %v", err)
	}
	claimed, ok := ev.(events.Claimed)
	if !ok {
		t.Fatalf("expected Claimed, got %T", ev)
	}
	if claimed.Amount != 40 || claimed.TreasuryBalance != 60 || claimed.ClaimantStake != 60 {
		t.Fatalf("unexpected claim: %+v", claimed)
	}
}

func TestRunStopsOnUnexpectedError(t *testing.T) {
	sc := Scenario{Steps: []Step{
		{Op: OpDeposit, Treasury: "missing", User: "bob", Amount: 5},
	}}
	runner, sink, _ := newRunner(t)
	res, err := runner.Run(context.Background(), sc)
	if !errors.Is(err, program.ErrTreasuryNotFound) {
		t.Fatalf("expected ErrTreasuryNotFound, got %v", err)
	}
	if len(res.Outcomes) != 1 || res.Committed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(sink.Records()) != 0 {
		t.Fatalf("failed step must not log")
	}
}

func TestRunFailsWhenExpectedErrorMissing(t *testing.T) {
	sc := Scenario{Steps: []Step{
		{Op: OpCreateTreasury, Authority: "alice", Mint: "usdc", ExpectError: "treasury_exists"},
	}}
	runner, _, _ := newRunner(t)
	if _, err := runner.Run(context.Background(), sc); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDecodeRejectsInvalidSteps(t *testing.T) {
	cases := []string{
		"steps:\n  - op: stake\n",
		"steps:\n  - op: deposit\n    user: bob\n",
		"steps:\n  - op: create_treasury\n    authority: a\n    mint: m\n    expect_error: nope\n",
		"steps:\n  - op: deposit\n    treasury: t\n    user: u\n    unknown: 1\n",
	}
	for _, input := range cases {
		if _, err := Decode(strings.NewReader(input)); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestSteppedClock(t *testing.T) {
	start := time.Unix(100, 0)
	clock := SteppedClock(start, 2*time.Second)
	if got := clock(); !got.Equal(start) {
		t.Fatalf("first tick: %v", got)
	}
	if got := clock(); got.Unix() != 102 {
		t.Fatalf("second tick: %v", got)
	}
}
