package config

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/sbetterfy/internal/flagx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, ":8080", c.EndpointAddrHTTP)
	assert.Equal(t, "sqlite", c.DatabaseDriver)
	assert.Equal(t, "file:sbetterfy.db?_pragma=busy_timeout(5000)", c.DatabaseDSN)
	assert.Equal(t, "secretKey", c.SecretKey)
	assert.Equal(t, 15*time.Minute, c.AccessTokenValidityDuration)
	assert.Equal(t, "dev_master_key.txt", c.MasterKeyFile)
	assert.False(t, c.DisableMasterKeyFile)
	assert.Equal(t, "http://127.0.0.1:8080/callback", c.SpotifyRedirectURL)
	assert.Equal(t, "admin", c.S3RootUser)
	assert.Equal(t, "secretpassword", c.S3RootPassword)
	assert.Equal(t, "vault", c.S3Bucket)
	assert.Equal(t, "us-east-1", c.S3Region)
	assert.Equal(t, "http://127.0.0.1:9000/", c.S3BaseEndpoint)
	assert.Empty(t, c.BackupSchedule)
	assert.Equal(t, "info", c.LogLevel)
	assert.NoError(t, c.Validate())
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	t.Setenv(flagx.ConfigEnvVar, "")

	c, err := LoadConfig([]string{"-a", ":6000"})
	require.NoError(t, err)
	require.NotNil(t, c, "LoadConfig must not return nil")

	assert.Equal(t, ":6000", c.EndpointAddrGRPC)
	assert.Equal(t, ":8080", c.EndpointAddrHTTP)
	assert.Equal(t, "secretKey", c.SecretKey)
	assert.Equal(t, 15*time.Minute, c.AccessTokenValidityDuration)
}

func TestValidate(t *testing.T) {
	var c Config
	c.LoadDefaults()
	c.SecretKey = ""
	c.AccessTokenValidityDuration = 0
	c.BackupSchedule = "@daily"
	c.S3Bucket = ""

	err := c.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "secret key")
	assert.ErrorContains(t, err, "validity")
	assert.ErrorContains(t, err, "bucket")
}

func TestLoadConfig_InvalidFlags(t *testing.T) {
	t.Setenv(flagx.ConfigEnvVar, "")

	_, err := LoadConfig([]string{"-t", "soon"})
	assert.Error(t, err)

	_, err = LoadConfig([]string{"-s", ""})
	assert.Error(t, err)
}
