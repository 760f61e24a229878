// Package config handles configuration for the server component,
// including defaults, JSON overlay, and command-line flags.
//
// Master key material is deliberately absent: it is read from the
// environment or the key file by the vault at startup.
package config

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/sbetterfy/internal/common"
)

// Config holds runtime settings for the sbetterfy server.
//
// Fields:
//   - EndpointAddrGRPC / EndpointAddrHTTP: bind addresses.
//   - DatabaseDriver: "sqlite" or "postgres"; DatabaseDSN is passed to it.
//   - SecretKey: HMAC secret for signing JWTs (HS256). Do not use test defaults in prod.
//   - AccessTokenValidityDuration: lifetime of issued JWTs.
//   - MasterKeyFile: master key file, preferred over the environment unless
//     DisableMasterKeyFile is set.
//   - SpotifyRedirectURL: OAuth callback registered with the user's Spotify app.
//   - AppURL: where the browser returns after connecting Spotify.
//   - S3RootUser / S3RootPassword / S3Bucket / S3Region / S3BaseEndpoint: backup bucket.
//   - BackupSchedule: cron expression for ciphertext backups; empty disables them.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	EndpointAddrGRPC            string
	EndpointAddrHTTP            string
	DatabaseDriver              string
	DatabaseDSN                 string
	SecretKey                   string
	AccessTokenValidityDuration time.Duration
	MasterKeyFile               string
	DisableMasterKeyFile        bool
	SpotifyRedirectURL          string
	AppURL                      string
	S3RootUser                  string
	S3RootPassword              string
	S3Bucket                    string
	S3Region                    string
	S3BaseEndpoint              string
	BackupSchedule              string
	LogLevel                    string
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddrGRPC = ":50051"
	c.EndpointAddrHTTP = ":8080"
	c.DatabaseDriver = "sqlite"
	c.DatabaseDSN = "file:sbetterfy.db?_pragma=busy_timeout(5000)"
	c.SecretKey = "secretKey"
	c.AccessTokenValidityDuration = 15 * time.Minute
	c.MasterKeyFile = common.DefaultMasterKeyFile
	c.DisableMasterKeyFile = false
	c.SpotifyRedirectURL = "http://127.0.0.1:8080/callback"
	c.AppURL = "http://127.0.0.1:5173/"
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "vault"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.BackupSchedule = ""
	c.LogLevel = "info"
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is empty"))
	}
	if c.AccessTokenValidityDuration <= 0 {
		errs = append(errs, errors.New("access token validity must be positive"))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database dsn is empty"))
	}
	if c.BackupSchedule != "" && c.S3Bucket == "" {
		errs = append(errs, errors.New("backup schedule set without a bucket"))
	}
	return errors.Join(errs...)
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
