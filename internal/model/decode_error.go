package model

// DecodeError records a decode failure for a log line.
type DecodeError struct {
	Slot      uint64 `json:"slot"`
	Signature string `json:"signature"`
	LogIndex  uint64 `json:"log_index"`
	ProgramID string `json:"program_id"`
	Error     string `json:"error"`
}
