package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/sbetterfy/internal/flagx"
)

var serverFlags = []string{
	"-a", "-w", "-d", "-driver", "-s", "-t", "-k", "-no-key-file",
	"-redirect", "-app-url", "-u", "-p", "-b", "-g", "-e", "-backup", "-l",
}

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string        gRPC bind address (e.g., ":50051")
//	-w string        HTTP bind address (e.g., ":8080")
//	-d string        database DSN
//	-driver string   database driver: sqlite or postgres
//	-s string        JWT HMAC secret key
//	-t int           access token validity, minutes
//	-k string        master key file
//	-no-key-file     ignore the master key file, use the environment only
//	-redirect string Spotify OAuth redirect URL
//	-app-url string  frontend URL to return to after connecting Spotify
//	-u string        S3 root user
//	-p string        S3 root password
//	-b string        S3 bucket name
//	-g string        S3 region
//	-e string        S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-backup string   backup cron schedule (e.g., "@daily")
//	-l string        log level
//
// Notes:
//   - args are first filtered to the flags recognized here using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - Token validity is accepted as an integer in minutes.
//   - Pass -no-key-file as the last flag or as -no-key-file=true.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, serverFlags)

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.EndpointAddrHTTP, "w", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.DatabaseDriver, "driver", config.DatabaseDriver, "database driver")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")

	fs.StringVar(&config.MasterKeyFile, "k", config.MasterKeyFile, "master key file")
	fs.BoolVar(&config.DisableMasterKeyFile, "no-key-file", config.DisableMasterKeyFile, "do not read the master key file")
	fs.StringVar(&config.SpotifyRedirectURL, "redirect", config.SpotifyRedirectURL, "Spotify redirect URL")
	fs.StringVar(&config.AppURL, "app-url", config.AppURL, "frontend URL")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.BackupSchedule, "backup", config.BackupSchedule, "backup cron schedule")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	return nil
}
