package model

import (
	"encoding/json"
	"testing"
)

func TestDepositedEventDataJSONStringFields(t *testing.T) {
	payload := DepositedEventData{
		Treasury:        "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		Depositor:       "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T",
		Amount:          "18446744073709551615",
		TreasuryBalance: "18446744073709551615",
		DepositorStake:  "100",
		Slot:            10,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, key := range []string{"amount", "treasury_balance", "depositor_stake"} {
		if _, ok := decoded[key].(string); !ok {
			t.Fatalf("%s should be string", key)
		}
	}
}

func TestTypedEventRecordReadsTypedEvent(t *testing.T) {
	event := TypedEvent{
		Slot:      5,
		Signature: "sig",
		EventName: "Claimed",
		Treasury:  "T",
		Decoded:   ClaimedEventData{Treasury: "T", Claimant: "A", Amount: "40"},
	}
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var record TypedEventRecord
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	var claimed ClaimedEventData
	if err := json.Unmarshal(record.Decoded, &claimed); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if claimed.Amount != "40" || record.EventName != "Claimed" {
		t.Fatalf("record mismatch: %+v %+v", record, claimed)
	}
}
