package chain

import (
	"fmt"
	"strings"

	"xstaking/internal/events"
)

const (
	invokePrefix = "Program "
	invokeMarker = " invoke ["
	logPrefix    = "Program log: "
)

// ProgramData returns the "Program data:" payloads logged while programID was the
// executing program. Payloads logged by CPI callees or other top-level
// instructions are ignored.
func ProgramData(logs []string, programID string) ([][]byte, error) {
	var stack []string
	var out [][]byte
	for i, line := range logs {
		switch {
		case strings.HasPrefix(line, invokePrefix) && strings.Contains(line, invokeMarker):
			id := strings.TrimPrefix(line, invokePrefix)
			end := strings.Index(id, invokeMarker)
			if end <= 0 {
				continue
			}
			stack = append(stack, id[:end])
		case strings.HasPrefix(line, events.LogDataPrefix):
			if len(stack) == 0 || stack[len(stack)-1] != programID {
				continue
			}
			data, _, err := events.ParseLogLine(line)
			if err != nil {
				return nil, fmt.Errorf("log line %d: %w", i, err)
			}
			out = append(out, data)
		case isFrameEnd(line):
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return out, nil
}

func isFrameEnd(line string) bool {
	if !strings.HasPrefix(line, invokePrefix) || strings.HasPrefix(line, logPrefix) {
		return false
	}
	return strings.HasSuffix(line, " success") || strings.Contains(line, " failed: ")
}
