package server

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/sbetterfy/internal/common"
	"github.com/dmitrijs2005/sbetterfy/internal/logging"
	"github.com/dmitrijs2005/sbetterfy/internal/server/config"
	"github.com/dmitrijs2005/sbetterfy/internal/server/metrics"
	"github.com/dmitrijs2005/sbetterfy/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sbetterfy/internal/server/services"
	"github.com/dmitrijs2005/sbetterfy/internal/vault"
)

// Deps are the pieces shared by the server and the admin CLI.
type Deps struct {
	DB      *sql.DB
	Store   *repomanager.Store
	Vault   *vault.Vault
	Metrics *metrics.VaultMetrics
}

// OpenDeps loads the master key, opens and migrates the database and builds
// the vault. A missing or invalid master key is reported as
// vault.ErrConfiguration.
func OpenDeps(ctx context.Context, c *config.Config, logger logging.Logger) (*Deps, error) {
	masterKey, err := vault.LoadMasterKey(vault.MasterKeySource{
		File:        c.MasterKeyFile,
		EnvVar:      common.MasterKeyEnvVar,
		DisableFile: c.DisableMasterKeyFile,
	}, logger)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(masterKey)

	db, m, err := repomanager.Open(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	store := repomanager.NewStore(db, m)
	met := metrics.New()

	v, err := vault.New(masterKey, store,
		vault.WithLogger(logger.With("module", "vault")),
		vault.WithObserver(met),
	)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info(ctx, "vault ready", "driver", c.DatabaseDriver, "master_fingerprint", v.MasterFingerprint())
	return &Deps{DB: db, Store: store, Vault: v, Metrics: met}, nil
}

// S3Settings converts the backup bucket settings.
func S3Settings(c *config.Config) services.S3Settings {
	return services.S3Settings{
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
	}
}

// NewBackupService connects to the backup bucket.
func (d *Deps) NewBackupService(ctx context.Context, c *config.Config, logger logging.Logger) (*services.BackupService, error) {
	client, err := services.NewS3Client(ctx, S3Settings(c))
	if err != nil {
		return nil, err
	}
	return services.NewBackupService(d.Store, client, c.S3Bucket, d.Vault.MasterFingerprint(), logger.With("module", "backup")), nil
}

func (d *Deps) Close() error {
	return d.DB.Close()
}
