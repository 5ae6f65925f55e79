package config

import "fmt"

// SeedConfig controls the sample data written at startup.
type SeedConfig struct {
	// Enabled turns seeding on. Seeding never runs against a store that
	// already holds members.
	Enabled bool
	// Count is the number of members to create.
	Count int
}

// LoadSeedConfigFromEnv loads seed configuration from environment variables.
func LoadSeedConfigFromEnv() SeedConfig {
	return SeedConfig{
		Enabled: GetEnvBool("SEED_DATA", false),
		Count:   GetEnvInt("SEED_COUNT", 100),
	}
}

// Validate validates seed configuration.
func (c SeedConfig) Validate() error {
	if c.Enabled && c.Count <= 0 {
		return fmt.Errorf("SEED_COUNT must be greater than 0 when seeding is enabled, got %d", c.Count)
	}
	return nil
}
