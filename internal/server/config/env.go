package config

import (
	"os"
	"strconv"
)

var lookupEnv = os.LookupEnv

// parseEnv applies environment overrides. ENCRYPTION_KEY and
// DEFAULT_APP_PASSWORD are only read from the environment so they never land
// in a config file.
func parseEnv(config *Config) {
	if v, ok := lookupEnv("ENCRYPTION_KEY"); ok {
		config.EncryptionKey = v
	}
	if v, ok := lookupEnv("DEFAULT_APP_PASSWORD"); ok {
		config.DefaultAppPassword = v
	}
	if v, ok := lookupEnv("DATABASE_DSN"); ok {
		config.DatabaseDSN = v
	}
	if v, ok := lookupEnv("SECRET_KEY"); ok && v != "" {
		config.SecretKey = v
	}
	if v, ok := lookupEnv("VOS_DATA_DIR"); ok && v != "" {
		config.DataDir = v
	}
	if v, ok := lookupEnv("QUOTA_SYSTEM_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			config.QuotaEnabled = b
		}
	}
}
