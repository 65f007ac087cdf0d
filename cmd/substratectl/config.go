package main

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pbnjay/memory"
)

// Config is substratectl's TOML document: the worker-pool size, the
// arena the demo's stack allocator bumps into, a tick resolution, and the
// scheduler's in-flight limit. The scheduler itself takes no tick setting
// (it wakes at each deadline); the tick sets the demo's scheduled post to
// three ticks out.
type Config struct {
	Workers       int   `toml:"workers"`
	StackCapacity int   `toml:"stack_capacity_bytes"`
	TickMillis    int64 `toml:"tick_resolution_millis"`
	InFlightLimit int   `toml:"scheduler_in_flight_limit"`
}

// TickResolution returns TickMillis as a time.Duration.
func (c Config) TickResolution() time.Duration {
	return time.Duration(c.TickMillis) * time.Millisecond
}

// DefaultConfig sizes the demo stack allocator's arena as a small fraction
// of total system memory, rather than a hardcoded magic number, so the
// default scales sanely across dev laptops and small containers alike.
func DefaultConfig() Config {
	total := memory.TotalMemory()
	stack := total / 1024
	if stack < 64*1024 {
		stack = 64 * 1024
	}
	if stack > 64*1024*1024 {
		stack = 64 * 1024 * 1024
	}
	return Config{
		Workers:       0, // 0 => runtime.GOMAXPROCS(0), see executor.WithWorkers
		StackCapacity: int(stack),
		TickMillis:    10,
		InFlightLimit: 64,
	}
}

// LoadConfig reads a TOML document at path, overlaying it onto
// DefaultConfig. A missing or empty path returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
