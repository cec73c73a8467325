package model

import (
	"encoding/json"
	"strconv"
)

// LogRecord is one "Program data:" payload from a committed transaction.
type LogRecord struct {
	Slot       uint64 `json:"slot"`
	BlockTime  int64  `json:"block_time"`
	Signature  string `json:"signature"`
	LogIndex   uint64 `json:"log_index"`
	ProgramID  string `json:"program_id"`
	Data       string `json:"data"`
	IngestedAt string `json:"ingested_at"`
}

// Key identifies the record within the stream.
func (lr LogRecord) Key() string {
	return lr.Signature + ":" + strconv.FormatUint(lr.LogIndex, 10)
}

// MarshalJSON ensures LogRecord is encoded with stable field names.
func (lr LogRecord) MarshalJSON() ([]byte, error) {
	type Alias LogRecord
	return json.Marshal(Alias(lr))
}

// UnmarshalJSON decodes a LogRecord from JSON.
func (lr *LogRecord) UnmarshalJSON(data []byte) error {
	type Alias LogRecord
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*lr = LogRecord(a)
	return nil
}
