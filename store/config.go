package store

import "time"

// Config holds configuration for the DynamoDB backend.
type Config struct {
	// TableName is the single table holding every entity kind.
	// Default: "real"
	TableName string

	// BatchRetryMaxElapsed bounds how long unprocessed batch items are
	// retried before giving up.
	// Default: 30s
	BatchRetryMaxElapsed time.Duration

	// ConsistentReads makes every Get strongly consistent.
	ConsistentReads bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TableName:            "real",
		BatchRetryMaxElapsed: 30 * time.Second,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.TableName == "" {
		c.TableName = "real"
	}
	if c.BatchRetryMaxElapsed <= 0 {
		c.BatchRetryMaxElapsed = 30 * time.Second
	}
}
