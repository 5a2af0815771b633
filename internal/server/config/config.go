// Package config handles configuration for the access server, including
// defaults, JSON overlay, command-line flags and environment variables.
package config

import (
	"path/filepath"
	"time"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/users"
)

// Lock modes for the JSON store.
const (
	LockModeAuto = "auto"
	LockModeNone = "none"
)

// Config holds runtime settings for the access server.
//
// Fields:
//   - EndpointAddrGRPC: bind address for the gRPC endpoint.
//   - DataDir: directory holding the JSON documents, key file and incident log.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty keeps the documents in DataDir.
//   - SecretKey: HMAC secret for signing JWTs (HS256). Do not use the default in prod.
//   - AccessTokenValidityDuration: JWT lifetime.
//   - SessionTimeout: sliding inactivity timeout of a login session.
//   - EncryptionKeyFile / EncryptionKey: credential cipher key; EncryptionKey wins.
//     An empty EncryptionKeyFile means DataDir/.encryption_key.
//   - DefaultAppPassword: password given to seeded users. Empty leaves them without one.
//   - QuotaEnabled: false swaps the quota manager for a no-op backend.
//   - LockMode: "auto" uses OS file locks, "none" relies on in-process mutexes only.
//   - SeedUsers: accounts created when no users document exists.
//   - S3*: object storage used by backups.
type Config struct {
	EndpointAddrGRPC            string
	DataDir                     string
	DatabaseDSN                 string
	SecretKey                   string
	AccessTokenValidityDuration time.Duration
	SessionTimeout              time.Duration
	EncryptionKeyFile           string
	EncryptionKey               string
	DefaultAppPassword          string
	QuotaEnabled                bool
	LockMode                    string
	SeedUsers                   []users.SeedUser
	S3RootUser                  string
	S3RootPassword              string
	S3Bucket                    string
	S3Region                    string
	S3BaseEndpoint              string
}

// LoadDefaults populates Config with development defaults.
// NOTE: SecretKey must be overridden in production.
func (c *Config) LoadDefaults() {
	c.EndpointAddrGRPC = ":50051"
	c.DataDir = "dashboard_data"
	c.DatabaseDSN = ""
	c.SecretKey = "secretKey"
	c.AccessTokenValidityDuration = 24 * time.Hour
	c.SessionTimeout = 24 * time.Hour
	c.EncryptionKeyFile = ""
	c.QuotaEnabled = true
	c.LockMode = LockModeAuto
	c.SeedUsers = users.DefaultSeed()
	c.S3RootUser = ""
	c.S3RootPassword = ""
	c.S3Bucket = ""
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = ""
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, command-line flags and finally the environment.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	parseEnv(cfg)
	return cfg
}

// KeyFile resolves the encryption key file path.
func (c *Config) KeyFile() string {
	if c.EncryptionKeyFile != "" {
		return c.EncryptionKeyFile
	}
	return filepath.Join(c.DataDir, ".encryption_key")
}
