// Package common contains shared constants and sentinel errors used across
// sbetterfy components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// MasterKeyEnvVar names the environment variable holding the master key.
const MasterKeyEnvVar = "MASTER_ENCRYPTION_KEY"

// DefaultMasterKeyFile is the development key file consulted before the
// environment.
const DefaultMasterKeyFile = "dev_master_key.txt"
