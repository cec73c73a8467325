package model

import "encoding/json"

// TypedEventRecord is the JSON representation read back for replay.
type TypedEventRecord struct {
	Slot      uint64          `json:"slot"`
	BlockTime int64           `json:"block_time"`
	Signature string          `json:"signature"`
	LogIndex  uint64          `json:"log_index"`
	ProgramID string          `json:"program_id"`
	EventName string          `json:"event_name"`
	Treasury  string          `json:"treasury"`
	Decoded   json.RawMessage `json:"decoded"`
	Raw       *RawLogRef      `json:"raw,omitempty"`
}
