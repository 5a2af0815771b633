package config

import (
	"flag"
	"os"
	"time"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-D string   data directory
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-o int      session inactivity timeout, minutes
//	-k string   encryption key file
//	-q bool     quota system enabled (use -q=false to disable)
//	-l string   lock mode: auto or none
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// The arguments are filtered with flagx.FilterArgs first so flags meant for
// other components do not make parsing fail.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-D", "-d", "-s", "-t", "-o", "-k", "-q", "-l", "-u", "-p", "-b", "-g", "-e",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DataDir, "D", config.DataDir, "data directory")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	sessionTimeout := fs.Int("o", int(config.SessionTimeout.Minutes()), "session_timeout (in minutes)")

	fs.StringVar(&config.EncryptionKeyFile, "k", config.EncryptionKeyFile, "encryption key file")
	fs.BoolVar(&config.QuotaEnabled, "q", config.QuotaEnabled, "enable the quota system")
	fs.StringVar(&config.LockMode, "l", config.LockMode, "file lock mode (auto|none)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 backup bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.SessionTimeout = time.Duration(*sessionTimeout) * time.Minute
}
