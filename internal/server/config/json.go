package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/flagx"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/timex"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/users"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "24h" and integer nanoseconds are accepted.
// Only keys present in the file override the current values.
type JsonConfig struct {
	EndpointAddrGRPC            string           `json:"endpoint_addr_grpc"`
	DataDir                     string           `json:"data_dir"`
	DatabaseDSN                 string           `json:"database_dsn"`
	SecretKey                   string           `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration  `json:"access_token_validity_duration"`
	SessionTimeout              *timex.Duration  `json:"session_timeout"`
	EncryptionKeyFile           string           `json:"encryption_key_file"`
	QuotaEnabled                *bool            `json:"quota_enabled"`
	LockMode                    string           `json:"lock_mode"`
	SeedUsers                   []users.SeedUser `json:"seed_users"`
	S3RootUser                  string           `json:"s3_root_user"`
	S3RootPassword              string           `json:"s3_root_password"`
	S3Bucket                    string           `json:"s3_bucket"`
	S3Region                    string           `json:"s3_region"`
	S3BaseEndpoint              string           `json:"s3_base_endpoint"`
}

// parseJson loads the file named by -c or -config into config. Without the
// flag nothing is loaded. An unreadable or invalid file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DataDir, c.DataDir)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = time.Duration(c.AccessTokenValidityDuration.Duration)
	}
	if c.SessionTimeout != nil {
		config.SessionTimeout = time.Duration(c.SessionTimeout.Duration)
	}
	setString(&config.EncryptionKeyFile, c.EncryptionKeyFile)
	if c.QuotaEnabled != nil {
		config.QuotaEnabled = *c.QuotaEnabled
	}
	setString(&config.LockMode, c.LockMode)
	if c.SeedUsers != nil {
		config.SeedUsers = c.SeedUsers
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
