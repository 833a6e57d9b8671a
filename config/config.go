/*
Package config loads server configuration from environment variables.

PURPOSE:
  Centralizes runtime configuration. Values come from the environment
  (optionally via a .env file loaded in main) with sensible defaults,
  so the same binary serves dev, demo, and production.

VARIABLES:
  ADDR                 Listen address          (default ":8080")
  DATABASE_PATH        SQLite database path    (default "bank.db")
  SETTLEMENT_CADENCE   Settlement interval     (default "730h", ~monthly)
  SCHEDULER_ENABLED    Run settlement on timer (default true)

SEE ALSO:
  - cmd/server/main.go: Where this is loaded
  - api/scheduler.go: Consumer of the cadence settings
*/
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all server settings.
type Config struct {
	Addr              string
	DatabasePath      string
	SettlementCadence time.Duration
	SchedulerEnabled  bool
}

// Load reads configuration from the environment with defaults applied.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("ADDR", ":8080")
	v.SetDefault("DATABASE_PATH", "bank.db")
	v.SetDefault("SETTLEMENT_CADENCE", "730h")
	v.SetDefault("SCHEDULER_ENABLED", true)

	v.AutomaticEnv()
	for _, key := range []string{"ADDR", "DATABASE_PATH", "SETTLEMENT_CADENCE", "SCHEDULER_ENABLED"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	cfg := &Config{
		Addr:              v.GetString("ADDR"),
		DatabasePath:      v.GetString("DATABASE_PATH"),
		SettlementCadence: v.GetDuration("SETTLEMENT_CADENCE"),
		SchedulerEnabled:  v.GetBool("SCHEDULER_ENABLED"),
	}
	if cfg.SettlementCadence <= 0 {
		return nil, fmt.Errorf("SETTLEMENT_CADENCE must be positive, got %v", cfg.SettlementCadence)
	}
	return cfg, nil
}
