package model

// TypedEvent is a decoded program event with its position in the log stream.
type TypedEvent struct {
	Slot      uint64      `json:"slot"`
	BlockTime int64       `json:"block_time"`
	Signature string      `json:"signature"`
	LogIndex  uint64      `json:"log_index"`
	ProgramID string      `json:"program_id"`
	EventName string      `json:"event_name"`
	Treasury  string      `json:"treasury"`
	Decoded   interface{} `json:"decoded"`
	Raw       *RawLogRef  `json:"raw,omitempty"`
}

// RawLogRef keeps the encoded payload for traceability.
type RawLogRef struct {
	Data string `json:"data"`
}
