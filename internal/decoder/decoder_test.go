package decoder

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"xstaking/internal/events"
	"xstaking/internal/model"
	"xstaking/internal/pubkey"
)

var (
	programID = pubkey.FromSeed("x-staking").String()
	treasury  = pubkey.FromSeed("treasury")
	claimant  = pubkey.FromSeed("claimant")
)

func buildLogRecord(t *testing.T, ev events.Event) model.LogRecord {
	t.Helper()
	data, err := events.Encode(ev)
	if err != nil {
		t.Fatalf("encode %s: %v", ev.EventName(), err)
	}
	return model.LogRecord{
		Slot:      77,
		BlockTime: 1700000000,
		Signature: "sig",
		LogIndex:  2,
		ProgramID: programID,
		Data:      base64.StdEncoding.EncodeToString(data),
	}
}

func TestDecodeClaimed(t *testing.T) {
	d := New(programID)
	rec := buildLogRecord(t, events.Claimed{
		Treasury:        treasury,
		Claimant:        claimant,
		Amount:          18446744073709551000,
		TreasuryBalance: 615,
		ClaimantStake:   0,
		Slot:            77,
		UnixTimestamp:   1700000000,
	})

	if !d.CanDecode(rec) {
		t.Fatalf("decoder should accept claimed record")
	}
	event, err := d.Decode(rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	claimed, ok := event.Decoded.(model.ClaimedEventData)
	if !ok {
		t.Fatalf("decoded type mismatch")
	}
	if claimed.Amount != "18446744073709551000" || claimed.TreasuryBalance != "615" || claimed.ClaimantStake != "0" {
		t.Fatalf("amounts mismatch: %+v", claimed)
	}
	if claimed.Claimant != claimant.String() || event.Treasury != treasury.String() {
		t.Fatalf("address mismatch: %+v", claimed)
	}
	if event.EventName != events.NameClaimed || event.Signature != "sig" || event.LogIndex != 2 {
		t.Fatalf("event metadata mismatch: %+v", event)
	}
}

func TestDecodeTreasuryCreatedAndDeposited(t *testing.T) {
	d := New("")
	created := buildLogRecord(t, events.TreasuryCreated{
		Treasury:      treasury,
		Authority:     pubkey.FromSeed("admin"),
		TreasuryMint:  pubkey.FromSeed("mint"),
		TreasuryVault: pubkey.FromSeed("vault"),
		PosMint:       pubkey.FromSeed("pos"),
		Slot:          1,
	})
	event, err := d.Decode(created)
	if err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if data, ok := event.Decoded.(model.TreasuryCreatedData); !ok || data.PosMint != pubkey.FromSeed("pos").String() {
		t.Fatalf("created payload mismatch: %+v", event.Decoded)
	}

	deposited := buildLogRecord(t, events.Deposited{
		Treasury:        treasury,
		Depositor:       claimant,
		Amount:          100,
		TreasuryBalance: 100,
		DepositorStake:  100,
	})
	event, err = d.Decode(deposited)
	if err != nil {
		t.Fatalf("decode deposited: %v", err)
	}
	line, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var record model.TypedEventRecord
	if err := json.Unmarshal(line, &record); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var dep model.DepositedEventData
	if err := json.Unmarshal(record.Decoded, &dep); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if dep.Amount != "100" || record.EventName != events.NameDeposited {
		t.Fatalf("typed record mismatch: %+v", dep)
	}
}

func TestDecodeSkipsForeignAndUnknown(t *testing.T) {
	d := New(programID)
	rec := buildLogRecord(t, events.Deposited{Treasury: treasury, Depositor: claimant, Amount: 1, TreasuryBalance: 1, DepositorStake: 1})

	foreign := rec
	foreign.ProgramID = pubkey.FromSeed("other").String()
	if d.CanDecode(foreign) {
		t.Fatalf("foreign program record accepted")
	}

	unknown := rec
	unknown.Data = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef"))
	if d.CanDecode(unknown) {
		t.Fatalf("unknown discriminator accepted")
	}

	broken := rec
	broken.Data = "not base64!"
	if !d.CanDecode(broken) {
		t.Fatalf("broken payload should reach Decode")
	}
	if _, err := d.Decode(broken); err == nil {
		t.Fatalf("expected base64 error")
	}
	errRow := ErrorFromRecord(broken, errBroken)
	if errRow.Signature != "sig" || errRow.Error != errBroken.Error() {
		t.Fatalf("error row mismatch: %+v", errRow)
	}
}

type brokenError struct{}

func (brokenError) Error() string { return "broken" }

var errBroken = brokenError{}
