package vaultctl

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dmitrijs2005/sbetterfy/internal/common"
	"github.com/dmitrijs2005/sbetterfy/internal/cryptox"
	"github.com/dmitrijs2005/sbetterfy/internal/filex"
	"github.com/spf13/cobra"
)

func newKeygenCommand() *cobra.Command {
	var (
		out   string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Print a new random master key",
		Long: "Print a new random master key. Store it in " + common.MasterKeyEnvVar +
			" or write it to a key file with --out.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := cryptox.FormatKey(cryptox.GenerateKey())
			if out == "" {
				fmt.Fprintln(cmd.OutOrStdout(), key)
				return nil
			}

			if err := filex.WriteSecretFile(out, []byte(key+"\n"), force); err != nil {
				if errors.Is(err, filex.ErrExists) {
					return fmt.Errorf("%s exists, use --force to overwrite", out)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "master key written to %s (fingerprint %s)\n", out, fingerprintOf(key))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the key to this file (mode 0600)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func fingerprintOf(text string) string {
	key, err := cryptox.ParseKey(text)
	if err != nil {
		return "invalid"
	}
	defer common.WipeByteArray(key)
	return cryptox.Fingerprint(key)
}

// readNewMasterKey reads the new key from file, or twice from the terminal
// without echo.
func (o *options) readNewMasterKey(cmd *cobra.Command, file string) ([]byte, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		return cryptox.ParseKey(string(data))
	}

	prompt := func(label string) (string, error) {
		fmt.Fprint(cmd.ErrOrStderr(), label)
		b, err := readPassword(o.stdinFD)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		defer common.WipeByteArray(b)
		return strings.TrimSpace(string(b)), nil
	}

	first, err := prompt("New master key: ")
	if err != nil {
		return nil, err
	}
	second, err := prompt("Repeat new master key: ")
	if err != nil {
		return nil, err
	}
	if first != second {
		return nil, errors.New("keys do not match")
	}
	return cryptox.ParseKey(first)
}

func newRotateCommand(o *options) *cobra.Command {
	var keyFile string
	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Re-wrap every user key under a new master key",
		Long: "Re-wrap every user key under a new master key. The current master key is " +
			"loaded like the server does; the new one is read from the terminal or --new-key-file. " +
			"Restart the server with the new key afterwards.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			newKey, err := o.readNewMasterKey(cmd, keyFile)
			if err != nil {
				return fmt.Errorf("new master key: %w", err)
			}
			defer common.WipeByteArray(newKey)

			d, _, err := o.deps(cmd.Context())
			if err != nil {
				return err
			}
			defer o.close()

			report, err := d.Vault.RotateMasterKey(cmd.Context(), newKey)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "user keys: %d, re-wrapped: %d, already current: %d, failed: %d\n",
				report.Total, report.Rewrapped, report.AlreadyCurrent, len(report.Failed))
			for _, f := range report.Failed {
				fmt.Fprintf(w, "  %s (wrapped by %s): %v\n", f.UserID, f.Fingerprint, f.Err)
			}
			fmt.Fprintf(w, "new master key fingerprint: %s\n", report.NewFingerprint)

			if len(report.Failed) > 0 {
				return fmt.Errorf("%d user keys were not re-wrapped", len(report.Failed))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "new-key-file", "", "read the new master key from this file")
	return cmd
}
