package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dmitrijs2005/sbetterfy/internal/common"
	"github.com/dmitrijs2005/sbetterfy/internal/cryptox"
	"github.com/dmitrijs2005/sbetterfy/internal/logging"
)

// MasterKeySource describes where the master key may come from.
//
// The key file, when present, always wins over the environment variable.
// Set DisableFile in deployments where only the environment is trusted.
type MasterKeySource struct {
	File        string // defaults to common.DefaultMasterKeyFile
	EnvVar      string // defaults to common.MasterKeyEnvVar
	DisableFile bool

	// LookupEnv replaces os.LookupEnv in tests.
	LookupEnv func(string) (string, bool)
}

// LoadMasterKey resolves the master key from src. Any failure is wrapped in
// ErrConfiguration and should stop the process.
func LoadMasterKey(src MasterKeySource, logger logging.Logger) ([]byte, error) {
	ctx := context.Background()
	if logger == nil {
		logger = logging.Nop{}
	}

	file := src.File
	if file == "" {
		file = common.DefaultMasterKeyFile
	}
	envVar := src.EnvVar
	if envVar == "" {
		envVar = common.MasterKeyEnvVar
	}
	lookup := src.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	envValue, envSet := lookup(envVar)
	envSet = envSet && envValue != ""

	if !src.DisableFile {
		data, err := os.ReadFile(file)
		switch {
		case err == nil:
			key, err := cryptox.ParseKey(string(data))
			if err != nil {
				return nil, fmt.Errorf("%w: key file %s: %v", ErrConfiguration, file, err)
			}
			if envSet {
				logger.Warn(ctx, "master key file overrides environment variable", "file", file, "env", envVar)
			} else {
				logger.Warn(ctx, "using master key from file", "file", file)
			}
			return key, nil
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("%w: key file %s: %v", ErrConfiguration, file, err)
		}
	}

	if !envSet {
		if src.DisableFile {
			return nil, fmt.Errorf("%w: %s is not set", ErrConfiguration, envVar)
		}
		return nil, fmt.Errorf("%w: %s is not set and %s does not exist", ErrConfiguration, envVar, file)
	}

	key, err := cryptox.ParseKey(envValue)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfiguration, envVar, err)
	}
	logger.Info(ctx, "using master key from environment", "env", envVar)
	return key, nil
}
