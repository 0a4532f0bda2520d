// Package config provides configuration types and loading for stratamem.
package config

import "time"

// Config is the root configuration struct. Environment overrides derive
// their names from the field path under the STRATAMEM prefix, e.g.
// STRATAMEM_STORAGE_BUCKET or STRATAMEM_INGEST_POLL_INTERVAL_SECONDS.
type Config struct {
	Log       LogConfig       `json:"log"`
	Storage   StorageConfig   `json:"storage"`
	Database  DatabaseConfig  `json:"database"`
	Ingest    IngestConfig    `json:"ingest"`
	Dedup     DedupConfig     `json:"dedup"`
	Hot       HotConfig       `json:"hot"`
	Retention RetentionConfig `json:"retention"`
	Audit     AuditConfig     `json:"audit"`
	Slack     SlackConfig     `json:"slack"`
	Auth      AuthConfig      `json:"auth"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level string `json:"level"`
}

// StorageConfig locates the upload bucket.
type StorageConfig struct {
	Bucket string `json:"bucket"`
	Prefix string `json:"prefix"`
}

// DatabaseConfig locates the warm-tier database file.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// IngestConfig tunes the ingestion worker.
type IngestConfig struct {
	PollIntervalSeconds int `json:"pollIntervalSeconds" split_words:"true"`
	ErrorBackoffSeconds int `json:"errorBackoffSeconds" split_words:"true"`
	MaxAttempts         int `json:"maxAttempts" split_words:"true"`
	Concurrency         int `json:"concurrency"`
}

// PollInterval returns the poll interval as a duration.
func (c IngestConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// ErrorBackoff returns the error backoff as a duration.
func (c IngestConfig) ErrorBackoff() time.Duration {
	return time.Duration(c.ErrorBackoffSeconds) * time.Second
}

// DedupConfig tunes the duplicate filter.
type DedupConfig struct {
	Permutations int     `json:"permutations"`
	Threshold    float64 `json:"threshold"`
	MaxTracked   int     `json:"maxTracked" split_words:"true"`
}

// HotConfig tunes the hot tier.
type HotConfig struct {
	MaxEntries    int `json:"maxEntries" split_words:"true"`
	MaxAgeMinutes int `json:"maxAgeMinutes" split_words:"true"`
}

// MaxAge returns the hot-tier age bound as a duration.
func (c HotConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeMinutes) * time.Minute
}

// RetentionConfig schedules warm-tier pruning.
type RetentionConfig struct {
	TTLDays  int    `json:"ttlDays" split_words:"true"`
	Schedule string `json:"schedule"`
}

// TTL returns the retention TTL as a duration. 0 keeps records forever.
func (c RetentionConfig) TTL() time.Duration {
	return time.Duration(c.TTLDays) * 24 * time.Hour
}

// AuditConfig configures the Kafka audit trail.
type AuditConfig struct {
	Enabled bool   `json:"enabled"`
	Brokers string `json:"brokers"`
	Topic   string `json:"topic"`
}

// SlackConfig configures quarantine notifications.
type SlackConfig struct {
	Token   string `json:"token"`
	Channel string `json:"channel"`
}

// AuthConfig holds the static token registry guarding read commands. An
// empty registry leaves reads open; this is the development default.
// Tokens are config-file only, they never come from the environment.
type AuthConfig struct {
	Tokens map[string]TokenClaims `json:"tokens" ignored:"true"`
}

// TokenClaims are the claims granted to one registered token.
type TokenClaims struct {
	Sub   string   `json:"sub"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

func defaults() Config {
	return Config{
		Log:      LogConfig{Level: "info"},
		Database: DatabaseConfig{Path: "~/.stratamem/warm.db"},
		Ingest: IngestConfig{
			PollIntervalSeconds: 30,
			ErrorBackoffSeconds: 60,
			MaxAttempts:         5,
			Concurrency:         4,
		},
		Dedup: DedupConfig{
			Permutations: 128,
			Threshold:    0.8,
		},
		Hot: HotConfig{
			MaxEntries:    10000,
			MaxAgeMinutes: 60,
		},
		Retention: RetentionConfig{
			Schedule: "0 3 * * *", // daily at 03:00
		},
		Audit: AuditConfig{
			Topic: "stratamem.audit",
		},
	}
}
