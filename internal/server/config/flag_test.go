package config

import (
	"os"
	"testing"
	"time"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/users"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	seed := []users.SeedUser{{Username: "auditor1"}}

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-D", "/var/lib/vos", "-d", "db", "-s", "secret",
			"-t", "1", "-o", "30", "-k", "/etc/vos/key", "-q=false", "-l", "none",
			"-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint",
		}, expected: &Config{
			EndpointAddrGRPC:            "127.0.0.1:9090",
			DataDir:                     "/var/lib/vos",
			DatabaseDSN:                 "db",
			SecretKey:                   "secret",
			AccessTokenValidityDuration: 1 * time.Minute,
			SessionTimeout:              30 * time.Minute,
			EncryptionKeyFile:           "/etc/vos/key",
			QuotaEnabled:                false,
			LockMode:                    LockModeNone,
			SeedUsers:                   seed,
			S3RootUser:                  "user",
			S3RootPassword:              "password",
			S3Bucket:                    "bucket",
			S3Region:                    "us-west-1",
			S3BaseEndpoint:              "http://endpoint",
		}},
		{name: "unknown flags are ignored", args: []string{"cmd", "-x", "1", "-t", "60"},
			expected: &Config{
				AccessTokenValidityDuration: time.Hour,
				QuotaEnabled:                true,
				SeedUsers:                   seed,
			}},
		{name: "bad value panics", args: []string{"cmd", "-t", "soon"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{QuotaEnabled: true, SeedUsers: seed}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
