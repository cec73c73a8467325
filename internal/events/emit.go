package events

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
)

// LogDataPrefix is how the runtime renders a structured record in transaction logs.
const LogDataPrefix = "Program data: "

// Sink appends one structured record to the host's event stream.
type Sink interface {
	LogData(data []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(data []byte) error

func (f SinkFunc) LogData(data []byte) error { return f(data) }

// EmitTreasuryCreated publishes ev. Call it after the treasury account is written.
func EmitTreasuryCreated(sink Sink, ev TreasuryCreated) error {
	return Emit(sink, ev)
}

// EmitDeposited publishes ev. Amount must be the value actually credited.
func EmitDeposited(sink Sink, ev Deposited) error {
	return Emit(sink, ev)
}

// EmitClaimed publishes ev. Amount must be the value actually debited.
func EmitClaimed(sink Sink, ev Claimed) error {
	return Emit(sink, ev)
}

// Emit validates, encodes and appends ev. Nothing reaches the sink when validation
// fails; sink errors are returned unchanged in meaning so the caller aborts.
func Emit(sink Sink, ev Event) error {
	if sink == nil {
		return fmt.Errorf("emit %s: sink is nil", ev.EventName())
	}
	if err := ev.Validate(); err != nil {
		return err
	}
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := sink.LogData(data); err != nil {
		return fmt.Errorf("emit %s: %w", ev.EventName(), err)
	}
	return nil
}

// FormatLogLine renders data the way the runtime prints it.
func FormatLogLine(data []byte) string {
	return LogDataPrefix + base64.StdEncoding.EncodeToString(data)
}

// ParseLogLine extracts the payload of a "Program data:" line.
func ParseLogLine(line string) ([]byte, bool, error) {
	if !strings.HasPrefix(line, LogDataPrefix) {
		return nil, false, nil
	}
	// Multiple slices are space-separated; records here are always a single slice.
	payload := strings.TrimSpace(strings.TrimPrefix(line, LogDataPrefix))
	if i := strings.IndexByte(payload, ' '); i >= 0 {
		payload = payload[:i]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, true, fmt.Errorf("decode program data: %w", err)
	}
	return data, true, nil
}

// MemorySink records payloads in order. Safe for concurrent use.
type MemorySink struct {
	mu      sync.Mutex
	records [][]byte
}

func (s *MemorySink) LogData(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	s.mu.Lock()
	s.records = append(s.records, cp)
	s.mu.Unlock()
	return nil
}

// Records returns copies of the appended payloads.
func (s *MemorySink) Records() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.records))
	for i, rec := range s.records {
		cp := make([]byte, len(rec))
		copy(cp, rec)
		out[i] = cp
	}
	return out
}

// Events decodes every appended payload.
func (s *MemorySink) Events() ([]Event, error) {
	records := s.Records()
	out := make([]Event, 0, len(records))
	for i, rec := range records {
		ev, err := Decode(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
