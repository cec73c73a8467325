package config

import "github.com/spf13/pflag"

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	Input     string
	PGDSN     string
	BatchSize int
	StateFile string
	Strict    bool
	Log       LogConfig
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size": 1000,
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	return ReplayConfig{
		Input:     v.GetString("in"),
		PGDSN:     v.GetString("pg-dsn"),
		BatchSize: v.GetInt("batch-size"),
		StateFile: v.GetString("state-file"),
		Strict:    v.GetBool("strict"),
		Log:       logConfig(v),
	}, nil
}
