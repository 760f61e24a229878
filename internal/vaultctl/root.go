// Package vaultctl implements the administrative command line of the vault:
// master key generation and rotation, one-off backups and development
// tokens. The secret subcommands go through a running server instead.
package vaultctl

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/sbetterfy/internal/logging"
	"github.com/dmitrijs2005/sbetterfy/internal/server"
	"github.com/dmitrijs2005/sbetterfy/internal/server/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Test seams.
var (
	openDeps     = server.OpenDeps
	readPassword = term.ReadPassword
)

type options struct {
	configPath string
	noKeyFile  bool
	logLevel   string
	stdinFD    int
	logOutput  io.Writer
	loadedCfg  *config.Config
	loadedDeps *server.Deps
	loadedLog  logging.Logger
}

// NewRootCommand builds the vaultctl command tree.
func NewRootCommand() *cobra.Command {
	o := &options{stdinFD: int(os.Stdin.Fd()), logOutput: os.Stderr}

	root := &cobra.Command{
		Use:           "vaultctl",
		Short:         "Administer the sbetterfy secret vault",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "server JSON config file")
	root.PersistentFlags().BoolVar(&o.noKeyFile, "no-key-file", false, "read the master key from the environment only")
	root.PersistentFlags().StringVar(&o.logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		newKeygenCommand(),
		newRotateCommand(o),
		newBackupCommand(o),
		newTokenCommand(o),
		newStatusCommand(o),
		newForgetCommand(o),
		newProvisionCommand(o),
		newSpotifyTokenCommand(o),
		newSecretCommand(o),
	)
	return root
}

func (o *options) config() (*config.Config, error) {
	if o.loadedCfg != nil {
		return o.loadedCfg, nil
	}
	var args []string
	if o.configPath != "" {
		args = []string{"-c", o.configPath}
	}
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return nil, err
	}
	if o.noKeyFile {
		cfg.DisableMasterKeyFile = true
	}
	o.loadedCfg = cfg
	return cfg, nil
}

func (o *options) logger() logging.Logger {
	if o.loadedLog == nil {
		o.loadedLog = logging.New(o.logOutput, o.logLevel)
	}
	return o.loadedLog
}

// deps opens the database and vault. The caller closes them with
// o.close.
func (o *options) deps(ctx context.Context) (*server.Deps, *config.Config, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, nil, err
	}
	d, err := openDeps(ctx, cfg, o.logger())
	if err != nil {
		return nil, nil, err
	}
	o.loadedDeps = d
	return d, cfg, nil
}

func (o *options) close() {
	if o.loadedDeps != nil {
		_ = o.loadedDeps.Close()
		o.loadedDeps = nil
	}
}

// Execute runs vaultctl with os.Args.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
