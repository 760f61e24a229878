package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/sbetterfy/internal/flagx"
	"github.com/dmitrijs2005/sbetterfy/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "15m" and integer nanoseconds.
//
// This struct is an intermediate DTO (Data Transfer Object) used only for
// reading JSON configuration files. It is seeded from the current Config, so
// keys missing from the file keep their previous values.
type JsonConfig struct {
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	DatabaseDriver              string         `json:"database_driver"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	MasterKeyFile               string         `json:"master_key_file"`
	DisableMasterKeyFile        bool           `json:"disable_master_key_file"`
	SpotifyRedirectURL          string         `json:"spotify_redirect_url"`
	AppURL                      string         `json:"app_url"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	BackupSchedule              string         `json:"backup_schedule"`
	LogLevel                    string         `json:"log_level"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The JSON file path comes from the -c or -config flag in args, or from
// the SBETTERFY_CONFIG environment variable. If neither is set, no JSON
// file is loaded.
//
// The master key itself can not be configured here.
func parseJson(config *Config, args []string) error {

	jsonConfigFile := flagx.ConfigPath(args)

	// nothing to load
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read config %s: %w", jsonConfigFile, err)
	}

	c := &JsonConfig{
		EndpointAddrGRPC:            config.EndpointAddrGRPC,
		EndpointAddrHTTP:            config.EndpointAddrHTTP,
		DatabaseDriver:              config.DatabaseDriver,
		DatabaseDSN:                 config.DatabaseDSN,
		SecretKey:                   config.SecretKey,
		AccessTokenValidityDuration: timex.Duration{Duration: config.AccessTokenValidityDuration},
		MasterKeyFile:               config.MasterKeyFile,
		DisableMasterKeyFile:        config.DisableMasterKeyFile,
		SpotifyRedirectURL:          config.SpotifyRedirectURL,
		AppURL:                      config.AppURL,
		S3RootUser:                  config.S3RootUser,
		S3RootPassword:              config.S3RootPassword,
		S3Bucket:                    config.S3Bucket,
		S3Region:                    config.S3Region,
		S3BaseEndpoint:              config.S3BaseEndpoint,
		BackupSchedule:              config.BackupSchedule,
		LogLevel:                    config.LogLevel,
	}

	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", jsonConfigFile, err)
	}

	config.EndpointAddrGRPC = c.EndpointAddrGRPC
	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDriver = c.DatabaseDriver
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	config.MasterKeyFile = c.MasterKeyFile
	config.DisableMasterKeyFile = c.DisableMasterKeyFile
	config.SpotifyRedirectURL = c.SpotifyRedirectURL
	config.AppURL = c.AppURL
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.BackupSchedule = c.BackupSchedule
	config.LogLevel = c.LogLevel
	return nil
}
