package config

import (
	"time"

	"github.com/spf13/pflag"
)

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	Scenario  string
	Out       string
	ProgramID string
	StartSlot uint64
	StartTime string
	SlotTime  time.Duration
	Log       LogConfig
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"out":        "./data/logs.jsonl",
		"start-slot": uint64(1),
		"slot-time":  400 * time.Millisecond,
	})
	if err != nil {
		return SimulateConfig{}, err
	}

	return SimulateConfig{
		Scenario:  v.GetString("scenario"),
		Out:       v.GetString("out"),
		ProgramID: v.GetString("program-id"),
		StartSlot: v.GetUint64("start-slot"),
		StartTime: v.GetString("start-time"),
		SlotTime:  v.GetDuration("slot-time"),
		Log:       logConfig(v),
	}, nil
}
